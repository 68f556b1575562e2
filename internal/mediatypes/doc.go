// Package mediatypes provides the shared rules that decide which files belong
// to the tag library.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types and pure
// utility functions with no dependencies beyond the standard library.
//
// # Extension Filter
//
// A Filter is built from the configured extension list (".gif" by default) and
// matches base names case-insensitively. Dotfiles never match, which is also how
// in-flight temporary files written into the library stay invisible:
//
//	filter := mediatypes.NewFilter([]string{".gif", "webp"})
//	filter.Match("Cat.GIF")      // true
//	filter.Match(".partial.gif") // false
//
// # MIME Types
//
// Use GetMimeType to get the appropriate MIME type for HTTP responses:
//
//	mimeType := mediatypes.GetMimeType("cat.gif") // "image/gif"
package mediatypes
