package catalog

import (
	"bytes"
	"errors"
	"io"

	"github.com/goforj/catalog/catalogcore"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionCodec represents a value compression algorithm.
type CompressionCodec = catalogcore.CompressionCodec

const (
	CompressionNone = catalogcore.CompressionNone
	CompressionGzip = catalogcore.CompressionGzip
	CompressionZstd = catalogcore.CompressionZstd
)

var (
	ErrValueTooLarge      = errors.New("catalog: value exceeds max size")
	ErrUnsupportedCodec   = errors.New("catalog: unsupported compression codec")
	ErrCorruptCompression = errors.New("catalog: corrupt compressed payload")
)

// Compressed values are framed as compressMagic, one codec tag byte, then
// the compressed stream. Anything else is read back as stored.
var compressMagic = []byte("CMP1")

type valueCodec struct {
	tag    byte
	writer func(io.Writer) (io.WriteCloser, error)
	reader func(io.Reader) (io.ReadCloser, error)
}

var valueCodecs = map[CompressionCodec]valueCodec{
	CompressionGzip: {
		tag: 'g',
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.BestSpeed)
		},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	},
	CompressionZstd: {
		tag: 'z',
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
		},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		},
	},
}

func codecByTag(tag byte) (valueCodec, bool) {
	for _, c := range valueCodecs {
		if c.tag == tag {
			return c, true
		}
	}
	return valueCodec{}, false
}

// encodeValue frames value with codec. max limits both the raw and the
// encoded size; zero disables the limit.
func encodeValue(codec CompressionCodec, max int, value []byte) ([]byte, error) {
	if max > 0 && len(value) > max {
		return nil, ErrValueTooLarge
	}
	if codec == CompressionNone || codec == "" {
		return value, nil
	}
	c, ok := valueCodecs[codec]
	if !ok {
		return nil, ErrUnsupportedCodec
	}

	var buf bytes.Buffer
	buf.Write(compressMagic)
	buf.WriteByte(c.tag)
	w, err := c.writer(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if max > 0 && buf.Len() > max {
		return nil, ErrValueTooLarge
	}
	return buf.Bytes(), nil
}

// decodeValue passes through values written without compression so a store
// can switch codecs without invalidating an existing snapshot.
func decodeValue(in []byte) ([]byte, error) {
	header := len(compressMagic) + 1
	if len(in) < header || !bytes.Equal(in[:len(compressMagic)], compressMagic) {
		return in, nil
	}
	c, ok := codecByTag(in[len(compressMagic)])
	if !ok {
		return nil, ErrUnsupportedCodec
	}
	r, err := c.reader(bytes.NewReader(in[header:]))
	if err != nil {
		return nil, ErrCorruptCompression
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrCorruptCompression
	}
	return out, nil
}
