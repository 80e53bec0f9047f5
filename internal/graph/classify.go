package graph

import "strings"

// FileType is the visual type of a node.
type FileType string

const (
	TypeComponent FileType = "component"
	TypePage      FileType = "page"
	TypeStore     FileType = "store"
	TypeUtil      FileType = "util"
	TypeAPI       FileType = "api"
	TypeConfig    FileType = "config"
	TypeSchema    FileType = "schema"
	TypeDefault   FileType = "default"

	// TypeModule marks aggregated module nodes. Classify never returns it.
	TypeModule FileType = "module"
)

// FileTypes lists the eight path-derived types in legend order.
var FileTypes = []FileType{
	TypeComponent, TypePage, TypeStore, TypeUtil,
	TypeAPI, TypeConfig, TypeSchema, TypeDefault,
}

// AllTypes is FileTypes plus TypeModule.
var AllTypes = append(append([]FileType{}, FileTypes...), TypeModule)

// IsKnown reports whether t is one of AllTypes.
func IsKnown(t FileType) bool {
	for _, k := range AllTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ParseFileType maps a server-provided type string to a FileType.
// The second result is false for anything outside the vocabulary.
func ParseFileType(s string) (FileType, bool) {
	t := FileType(strings.ToLower(strings.TrimSpace(s)))
	if IsKnown(t) {
		return t, true
	}
	return TypeDefault, false
}

// Classify infers a FileType from a file path. It is total: every input, including
// the empty string, maps to exactly one of FileTypes.
func Classify(path string) FileType {
	p := strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	switch {
	case strings.Contains(p, "/components/"):
		return TypeComponent
	case strings.Contains(p, "/pages/"),
		strings.Contains(p, "/app/") && strings.Contains(p, "page"):
		return TypePage
	case strings.Contains(p, "/store"),
		strings.Contains(p, "zustand"),
		strings.Contains(p, "redux"):
		return TypeStore
	case strings.Contains(p, "/api/"),
		strings.Contains(p, "routes"),
		strings.Contains(p, "service"):
		return TypeAPI
	case strings.Contains(p, "/utils/"),
		strings.Contains(p, "/lib/"),
		strings.Contains(p, "/helpers/"):
		return TypeUtil
	case strings.Contains(p, "config"):
		return TypeConfig
	case strings.Contains(p, "schema"),
		strings.Contains(p, "types"),
		strings.Contains(p, "interface"):
		return TypeSchema
	default:
		return TypeDefault
	}
}

// ResolveType prefers the server's type when it is recognized and falls back to
// the path classifier otherwise. "module" is only honoured for module entities.
func ResolveType(serverType, path string, entity Entity) FileType {
	if entity == EntityModule {
		return TypeModule
	}
	if t, ok := ParseFileType(serverType); ok && t != TypeModule {
		return t
	}
	return Classify(path)
}
