package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes are the media types that are compressed. Images are
	// already compressed and are passed through.
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses JSON and text responses.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:             gzip.BestSpeed,
		CompressibleTypes: []string{"application/json", "text/plain", "text/html"},
	}
}

// gzipResponseWriter decides on the first WriteHeader or Write whether the
// response is compressed, based on its Content-Type.
type gzipResponseWriter struct {
	http.ResponseWriter
	pool     *sync.Pool
	types    []string
	gz       *gzip.Writer
	decided  bool
	compress bool
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	g.decide()
	g.ResponseWriter.WriteHeader(statusCode)
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	g.decide()
	if g.compress {
		return g.gz.Write(data)
	}
	return g.ResponseWriter.Write(data)
}

func (g *gzipResponseWriter) decide() {
	if g.decided {
		return
	}
	g.decided = true

	h := g.Header()
	if h.Get("Content-Encoding") != "" || !compressible(h.Get("Content-Type"), g.types) {
		return
	}
	g.compress = true
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")

	g.gz = g.pool.Get().(*gzip.Writer)
	g.gz.Reset(g.ResponseWriter)
}

func (g *gzipResponseWriter) Flush() {
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

func (g *gzipResponseWriter) close() error {
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	g.pool.Put(g.gz)
	g.gz = nil
	return err
}

func compressible(contentType string, types []string) bool {
	if contentType == "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, t := range types {
		if mediaType == t {
			return true
		}
	}
	return false
}

// Compression returns a middleware that gzips compressible responses for
// clients that accept it. WebSocket upgrades are passed through untouched.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	pool := &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, config.Level)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") != "" || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{ResponseWriter: w, pool: pool, types: config.CompressibleTypes}
			defer gzw.close()
			next.ServeHTTP(gzw, r)
		})
	}
}
