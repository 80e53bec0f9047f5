package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strings"

	"git.sr.ht/~sbinet/gg"

	"github.com/codebaseqa/cqa/internal/layout"
)

// PNGOptions configures raster export.
type PNGOptions struct {
	// Scale multiplies the laid-out size. Zero means 1.
	Scale float64
	// MaxSide caps the longer image side in pixels. Zero means 8000.
	MaxSide int
	// Zoom is the zoom level used for the edge label rule. Zero means 1.
	Zoom float64
}

// PNG rasterizes the visible part of the scene on the dark export background.
func PNG(w io.Writer, scene *Scene, opts PNGOptions) error {
	if scene == nil {
		return fmt.Errorf("scene cannot be nil")
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.MaxSide <= 0 {
		opts.MaxSide = 8000
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 1
	}

	nodes := scene.VisibleNodes()
	edges := scene.VisibleEdges()
	byID := indexNodes(nodes)

	minX, minY, maxX, maxY := bounds(nodes)
	contentW := (maxX - minX) + 2*exportPadding
	contentH := (maxY - minY) + 2*exportPadding + headerHeight
	scale := opts.Scale
	if longest := math.Max(contentW, contentH) * scale; longest > float64(opts.MaxSide) {
		scale = float64(opts.MaxSide) / math.Max(contentW, contentH)
	}
	width := max(int(math.Ceil(contentW*scale)), 480)
	height := max(int(math.Ceil(contentH*scale)), 240)

	dc := gg.NewContext(width, height)
	dc.SetColor(bgDark)
	dc.Clear()

	drawHeaderPNG(dc, width, scene)

	if len(nodes) == 0 {
		dc.SetColor(textSecondary)
		dc.DrawStringAnchored("No visible nodes", float64(width)/2, float64(height)/2, 0.5, 0.5)
		return encodePNG(dc, w)
	}

	dc.Push()
	dc.Translate(0, headerHeight)
	dc.Scale(scale, scale)
	dc.Translate(exportPadding-minX, exportPadding-minY)

	vertical := scene.Mode == layout.ModeVertical
	for _, e := range edges {
		src, ok1 := byID[e.Source]
		dst, ok2 := byID[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		drawEdgePNG(dc, e, src, dst, vertical, opts.Zoom)
	}
	for _, n := range nodes {
		drawNodePNG(dc, n, scene.LOD, n.ID == scene.Selected)
	}
	dc.Pop()

	return encodePNG(dc, w)
}

func encodePNG(dc *gg.Context, w io.Writer) error {
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

func drawHeaderPNG(dc *gg.Context, width int, scene *Scene) {
	dc.SetColor(bgCard)
	dc.DrawRectangle(0, 0, float64(width), headerHeight)
	dc.Fill()

	dc.SetColor(textPrimary)
	dc.DrawStringAnchored(pageTitle(scene), 16, 20, 0, 0.5)
	dc.SetColor(textSecondary)
	summary := fmt.Sprintf("%d nodes - %d edges - %s", scene.Stats.Nodes, scene.Stats.Edges, scene.Stats.Band)
	if len(scene.Caveats) > 0 {
		summary += " - " + strings.Join(scene.Caveats, " - ")
	}
	dc.DrawStringAnchored(summary, 16, 40, 0, 0.5)
}

func drawEdgePNG(dc *gg.Context, e SceneEdge, src, dst SceneNode, vertical bool, zoom float64) {
	style := EdgeStyle(e.Type)
	sx, sy, tx, ty := anchors(src, dst)
	pts := route(sx, sy, tx, ty, vertical)

	alpha := uint8(0x70)
	if e.Highlighted {
		alpha = 0xff
	}
	c := withAlpha(style.Color, alpha)

	dc.SetColor(c)
	dc.SetLineWidth(StrokeWidth(e.Weight))
	if style.Dashed {
		dc.SetDash(6, 4)
	} else {
		dc.SetDash()
	}
	dc.MoveTo(pts[0][0], pts[0][1])
	for _, p := range pts[1:] {
		dc.LineTo(p[0], p[1])
	}
	dc.Stroke()
	dc.SetDash()

	last, prev := pts[len(pts)-1], pts[len(pts)-2]
	drawArrowHead(dc, prev[0], prev[1], last[0], last[1], c)

	if ShowEdgeLabel(e.Edge, e.Highlighted, zoom) {
		mid := pts[len(pts)/2]
		dc.SetColor(textSecondary)
		dc.DrawStringAnchored(e.Label, mid[0], mid[1]-6, 0.5, 0.5)
	}
}

func drawArrowHead(dc *gg.Context, fromX, fromY, toX, toY float64, c color.Color) {
	angle := math.Atan2(toY-fromY, toX-fromX)
	const size = 8.0
	p1x := toX - size*math.Cos(angle-math.Pi/7)
	p1y := toY - size*math.Sin(angle-math.Pi/7)
	p2x := toX - size*math.Cos(angle+math.Pi/7)
	p2y := toY - size*math.Sin(angle+math.Pi/7)

	dc.SetColor(c)
	dc.MoveTo(toX, toY)
	dc.LineTo(p1x, p1y)
	dc.LineTo(p2x, p2y)
	dc.ClosePath()
	dc.Fill()
}

func drawNodePNG(dc *gg.Context, n SceneNode, lod layout.LOD, selected bool) {
	style := NodeStyle(n.Type)
	b := nodeBox(n)

	dc.SetColor(withAlpha(style.Color, 0x2e))
	dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 8)
	dc.Fill()

	dc.SetLineWidth(1.5)
	dc.SetColor(style.Color)
	if selected {
		dc.SetLineWidth(3)
		dc.SetColor(accent)
	}
	dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 8)
	dc.Stroke()

	if n.IsModule() {
		dc.SetLineWidth(1)
		dc.SetColor(withAlpha(style.Color, 0x99))
		dc.DrawRoundedRectangle(b.X+3, b.Y+3, b.W-6, b.H-6, 6)
		dc.Stroke()
	}

	// The built-in face has no symbol glyphs, so the badge is the type label.
	lines := []string{truncate(n.Label, 28), strings.ToUpper(style.Label)}
	if lod != layout.LODCompact {
		lines = append(lines, strings.ReplaceAll(statsLine(n), "·", "-"))
	}
	const lineHeight = 14.0
	cx := b.X + b.W/2
	top := b.Y + b.H/2 - float64(len(lines)-1)*lineHeight/2
	for i, line := range lines {
		if i == 0 {
			dc.SetColor(textPrimary)
		} else {
			dc.SetColor(textSecondary)
		}
		dc.DrawStringAnchored(line, cx, top+float64(i)*lineHeight, 0.5, 0.5)
	}
}
