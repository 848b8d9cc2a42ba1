package middleware

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// gzipWriterPool reuses gzip writers to reduce allocations
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, 5)
		return w
	},
}

// bufferedResponseWriter holds the body until the handler returns so the
// size threshold can be applied.
type bufferedResponseWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bufferedResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.buf.Write(b)
}

// Compression gzips responses of at least minSize bytes for clients that accept gzip.
func Compression(minSize int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			bw := &bufferedResponseWriter{ResponseWriter: w}
			next.ServeHTTP(bw, r)
			if bw.status == 0 {
				bw.status = http.StatusOK
			}

			w.Header().Add("Vary", "Accept-Encoding")
			if bw.buf.Len() < minSize || w.Header().Get("Content-Encoding") != "" {
				w.WriteHeader(bw.status)
				_, _ = w.Write(bw.buf.Bytes())
				return
			}

			gz := gzipWriterPool.Get().(*gzip.Writer)
			defer gzipWriterPool.Put(gz)

			var compressed bytes.Buffer
			gz.Reset(&compressed)
			_, _ = gz.Write(bw.buf.Bytes())
			_ = gz.Close()

			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Content-Length", strconv.Itoa(compressed.Len()))
			w.WriteHeader(bw.status)
			_, _ = w.Write(compressed.Bytes())
		})
	}
}
