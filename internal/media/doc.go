// Package media renders gallery thumbnails for library images.
//
// Images are decoded with imaging (first frame for animated GIFs, EXIF
// orientation applied), constrained in size to bound memory, fitted into a
// 200x200 box and encoded as JPEG. Results are cached in an LRU keyed by
// file name, size and modification time; concurrent requests for the same
// thumbnail share one generation.
package media
