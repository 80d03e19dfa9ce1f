package transport

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// decodeBody returns the captured copy of body decoded according to the
// Content-Encoding header, at most limit bytes of it. Unknown or broken
// encodings yield the raw bytes and an error.
func decodeBody(body []byte, encoding string, limit int64) ([]byte, error) {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if encoding == "" || encoding == "identity" || len(body) == 0 {
		return body, nil
	}

	var (
		r   io.Reader
		err error
	)
	switch encoding {
	case "gzip", "x-gzip":
		var zr *gzip.Reader
		zr, err = gzip.NewReader(bytes.NewReader(body))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	case "deflate":
		// Servers disagree on whether deflate means zlib framing or raw flate.
		var zr io.ReadCloser
		zr, err = zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			zr, err = flate.NewReader(bytes.NewReader(body)), nil
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "zstd":
		var zr *zstd.Decoder
		zr, err = zstd.NewReader(bytes.NewReader(body))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	default:
		return body, fmt.Errorf("unsupported content encoding %q", encoding)
	}
	if err != nil {
		return body, fmt.Errorf("failed to decode %s body: %w", encoding, err)
	}

	decoded, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil && len(decoded) == 0 {
		return body, fmt.Errorf("failed to decode %s body: %w", encoding, err)
	}
	return decoded, nil
}
