package export

import (
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/gridbase/gridbase/pkg/errors"
)

// Compression selects the algorithm applied to an export stream.
// LZ4 and S2 favor speed, Zstd favors ratio, Gzip favors compatibility.
type Compression string

const (
	// CompressionNone writes the export uncompressed
	CompressionNone Compression = "none"
	// CompressionGzip uses gzip
	CompressionGzip Compression = "gzip"
	// CompressionLZ4 uses LZ4 frame format
	CompressionLZ4 Compression = "lz4"
	// CompressionS2 uses S2 (snappy-compatible)
	CompressionS2 Compression = "s2"
	// CompressionZstd uses Zstandard
	CompressionZstd Compression = "zstd"
)

// ParseCompression validates a compression name, defaulting empty to none
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip:
		return CompressionGzip, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionS2:
		return CompressionS2, nil
	case CompressionZstd:
		return CompressionZstd, nil
	}
	return "", errors.Newf(errors.ErrorTypeInvalidArgument, "unknown compression %q", name)
}

// ContentEncoding returns the HTTP Content-Encoding token for the
// algorithm, or "" when the stream is not encoded
func (c Compression) ContentEncoding() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionLZ4:
		return "lz4"
	case CompressionS2:
		return "s2"
	case CompressionZstd:
		return "zstd"
	}
	return ""
}

// nopCloser adapts a plain writer to io.WriteCloser
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// newWriter wraps w in the selected compression. The caller must Close the
// returned writer to flush compressor state; closing never closes w.
func newWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionS2:
		return s2.NewWriter(w), nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create zstd writer")
		}
		return zw, nil
	}
	return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unknown compression %q", c)
}
