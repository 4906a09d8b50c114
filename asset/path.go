// Package asset contains the shared data model for the asset management
// core: paths, type records, handles, load state and dependency tracking.
//
// © 2025 assetcore authors. MIT License.
package asset

import "strings"

// Path is the canonical, interned form of an asset path:
// "domain//scope/scope/name.ext". Backslashes are normalised to forward
// slashes, a leading slash is stripped, and comparisons are case-insensitive.
// Path is a value type: once constructed its fields never change.
type Path struct {
	raw string // lower-cased, slash-normalised, no leading slash

	domain     string
	scope      string
	scopedName string
	name       string
	extension  string
}

// NewPath normalises raw into a Path. Repeated slashes after the first "//"
// domain separator are collapsed to one, so a path keeps a single "//". It
// never fails: a malformed string
// (missing "//") simply yields empty Domain/Scope and ScopedName == the
// whole string, matching AssetPath::GetScope/GetDomain in the original
// engine when no "//" separator is present.
func NewPath(raw string) Path {
	p := strings.ReplaceAll(raw, "\\", "/")
	p = strings.ToLower(p)
	if strings.HasPrefix(p, "/") {
		p = p[1:]
	}
	if idx := strings.Index(p, "//"); idx >= 0 {
		rest := p[idx+2:]
		for strings.Contains(rest, "//") {
			rest = strings.ReplaceAll(rest, "//", "/")
		}
		p = p[:idx+2] + rest
	}

	path := Path{raw: p}
	path.domain = extractDomain(p)
	path.scope = extractScope(p)
	path.scopedName = extractScopedName(p)
	path.name = extractName(p)
	path.extension = extractExtension(p)
	return path
}

func extractDomain(p string) string {
	idx := strings.Index(p, "//")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

func extractScope(p string) string {
	idx := strings.Index(p, "//")
	if idx < 0 {
		last := strings.LastIndex(p, "/")
		if last < 0 {
			return ""
		}
		return p[:last]
	}
	last := strings.LastIndex(p, "/")
	if last < 0 || last-idx == 1 {
		return ""
	}
	return p[idx+2 : last]
}

func extractScopedName(p string) string {
	idx := strings.Index(p, "//")
	if idx < 0 {
		return p
	}
	return p[idx+2:]
}

func extractName(p string) string {
	last := strings.LastIndex(p, "/")
	if last < 0 {
		return p
	}
	return p[last+1:]
}

func extractExtension(p string) string {
	dot := strings.LastIndex(p, ".")
	if dot < 0 {
		return ""
	}
	return p[dot+1:]
}

// String returns the canonical, normalised form.
func (p Path) String() string { return p.raw }

// Domain is the top-level namespace segment, e.g. "engine".
func (p Path) Domain() string { return p.domain }

// Scope is the middle path segments between domain and name, e.g. "test".
func (p Path) Scope() string { return p.scope }

// ScopedName is everything after the "domain//" separator.
func (p Path) ScopedName() string { return p.scopedName }

// Name is the final path segment including extension, e.g. "a.obj".
func (p Path) Name() string { return p.name }

// Extension is the file extension without the leading dot, e.g. "obj".
func (p Path) Extension() string { return p.extension }

// IsEmpty reports whether the path carries no data.
func (p Path) IsEmpty() bool { return p.raw == "" }

// Equal performs a case-insensitive comparison. Both paths are already
// lower-cased by NewPath, so this is a plain string compare.
func (p Path) Equal(other Path) bool { return p.raw == other.raw }
