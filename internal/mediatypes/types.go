package mediatypes

import (
	"path/filepath"
	"strings"
)

// DefaultExtensions is the extension set used when none is configured.
var DefaultExtensions = []string{".gif"}

// ImageExtensions maps file extensions to whether they are image formats the
// library can be configured to track.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// Filter decides which directory entries belong to the library.
type Filter struct {
	extensions map[string]bool
}

// NewFilter builds a Filter from a list of extensions. Extensions are
// normalized to lowercase with a leading dot, so "GIF", ".gif" and "gif"
// are equivalent. An empty list falls back to DefaultExtensions.
func NewFilter(extensions []string) Filter {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = NormalizeExtension(ext)
		if ext != "" {
			set[ext] = true
		}
	}
	return Filter{extensions: set}
}

// NormalizeExtension lowercases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Extensions returns the normalized extensions accepted by the filter.
func (f Filter) Extensions() []string {
	out := make([]string, 0, len(f.extensions))
	for ext := range f.extensions {
		out = append(out, ext)
	}
	return out
}

// Match reports whether name (a base name or a path) has a supported
// extension and is not hidden. The comparison is case-insensitive.
func (f Filter) Match(name string) bool {
	base := filepath.Base(name)
	if IsHidden(base) {
		return false
	}
	return f.extensions[strings.ToLower(filepath.Ext(base))]
}

// IsHidden reports whether a base name is a dotfile.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// GetMimeType returns the MIME type for a given file name or extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = strings.ToLower(name)
	}
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsImage reports whether the extension of name is a known image format.
func IsImage(name string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(name))]
}
