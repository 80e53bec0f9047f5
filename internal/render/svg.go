package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/codebaseqa/cqa/internal/layout"
)

const (
	exportPadding = 40
	headerHeight  = 56
	fontFamily    = "system-ui,sans-serif"
)

// SVG draws the visible part of the scene. Hidden nodes and their edges are left
// out; positions are the laid-out ones.
func SVG(w io.Writer, scene *Scene, zoom float64) error {
	if scene == nil {
		return fmt.Errorf("scene cannot be nil")
	}
	nodes := scene.VisibleNodes()
	edges := scene.VisibleEdges()
	byID := indexNodes(nodes)

	minX, minY, maxX, maxY := bounds(nodes)
	width := int(math.Ceil(maxX-minX)) + 2*exportPadding
	height := int(math.Ceil(maxY-minY)) + 2*exportPadding + headerHeight
	width = max(width, 480)
	height = max(height, 240)
	offX := exportPadding - minX
	offY := exportPadding + headerHeight - minY

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Def()
	canvas.Marker("arrow", 8, 4, 8, 8, `orient="auto" markerUnits="userSpaceOnUse"`)
	canvas.Path("M0,0 L8,4 L0,8 z", "fill:"+cssRGBA(textSecondary))
	canvas.MarkerEnd()
	canvas.DefEnd()

	canvas.Rect(0, 0, width, height, "fill:"+cssRGBA(bgDark))
	drawHeaderSVG(canvas, width, scene)

	if len(nodes) == 0 {
		canvas.Text(width/2, height/2, "No visible nodes",
			fmt.Sprintf("fill:%s;font-size:14px;font-family:%s;text-anchor:middle", cssRGBA(textSecondary), fontFamily))
		canvas.End()
		return nil
	}

	vertical := scene.Mode == layout.ModeVertical
	canvas.Gtransform(fmt.Sprintf("translate(%.1f,%.1f)", offX, offY))
	for _, e := range edges {
		src, ok1 := byID[e.Source]
		dst, ok2 := byID[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		drawEdgeSVG(canvas, e, src, dst, vertical, zoom)
	}
	for _, n := range nodes {
		drawNodeSVG(canvas, n, scene.LOD, n.ID == scene.Selected)
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func drawHeaderSVG(canvas *svg.SVG, width int, scene *Scene) {
	canvas.Rect(0, 0, width, headerHeight, "fill:"+cssRGBA(bgCard))
	canvas.Text(16, 24, pageTitle(scene),
		fmt.Sprintf("fill:%s;font-size:16px;font-family:%s;font-weight:600", cssRGBA(textPrimary), fontFamily))
	summary := fmt.Sprintf("%d nodes · %d edges · %s", scene.Stats.Nodes, scene.Stats.Edges, scene.Stats.Band)
	if len(scene.Caveats) > 0 {
		summary += " · " + strings.Join(scene.Caveats, " · ")
	}
	canvas.Text(16, 44, summary,
		fmt.Sprintf("fill:%s;font-size:12px;font-family:%s", cssRGBA(textSecondary), fontFamily))
}

func drawEdgeSVG(canvas *svg.SVG, e SceneEdge, src, dst SceneNode, vertical bool, zoom float64) {
	style := EdgeStyle(e.Type)
	sx, sy, tx, ty := anchors(src, dst)
	pts := route(sx, sy, tx, ty, vertical)

	var d strings.Builder
	for i, p := range pts {
		if i == 0 {
			fmt.Fprintf(&d, "M%.1f,%.1f", p[0], p[1])
		} else {
			fmt.Fprintf(&d, " L%.1f,%.1f", p[0], p[1])
		}
	}

	opacity := 0.45
	if e.Highlighted {
		opacity = 1
	}
	css := fmt.Sprintf("fill:none;stroke:%s;stroke-width:%.2f;stroke-opacity:%.2f;marker-end:url(#arrow)",
		cssRGBA(style.Color), StrokeWidth(e.Weight), opacity)
	if style.Dashed {
		css += ";stroke-dasharray:6,4"
	}
	canvas.Path(d.String(), css)

	if ShowEdgeLabel(e.Edge, e.Highlighted, zoom) {
		mid := pts[len(pts)/2]
		canvas.Text(int(mid[0]), int(mid[1])-4, e.Label,
			fmt.Sprintf("fill:%s;font-size:10px;font-family:%s;text-anchor:middle", cssRGBA(textSecondary), fontFamily))
	}
}

func drawNodeSVG(canvas *svg.SVG, n SceneNode, lod layout.LOD, selected bool) {
	style := NodeStyle(n.Type)
	b := nodeBox(n)
	x, y, w, h := int(b.X), int(b.Y), int(b.W), int(b.H)

	border := cssRGBA(style.Color)
	strokeWidth := 1.5
	if selected {
		border = cssRGBA(accent)
		strokeWidth = 3
	}
	canvas.Roundrect(x, y, w, h, 8, 8,
		fmt.Sprintf("fill:%s;fill-opacity:0.18;stroke:%s;stroke-width:%.1f", cssRGBA(style.Color), border, strokeWidth))
	if n.IsModule() {
		canvas.Roundrect(x+3, y+3, w-6, h-6, 6, 6,
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:1;stroke-opacity:0.6", cssRGBA(style.Color)))
	}

	cx := x + w/2
	lines := []string{style.Icon + " " + truncate(n.Label, 28), strings.ToUpper(style.Label)}
	if lod != layout.LODCompact {
		lines = append(lines, statsLine(n))
	}
	lineHeight := 14
	top := y + h/2 - (len(lines)-1)*lineHeight/2
	for i, line := range lines {
		css := fmt.Sprintf("fill:%s;font-size:11px;font-family:%s;text-anchor:middle;dominant-baseline:middle", cssRGBA(textSecondary), fontFamily)
		if i == 0 {
			css = fmt.Sprintf("fill:%s;font-size:12px;font-family:%s;font-weight:600;text-anchor:middle;dominant-baseline:middle", cssRGBA(textPrimary), fontFamily)
		}
		canvas.Text(cx, top+i*lineHeight, line, css)
	}
}

func indexNodes(nodes []SceneNode) map[string]SceneNode {
	out := make(map[string]SceneNode, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out
}
