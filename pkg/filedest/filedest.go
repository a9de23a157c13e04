// Package filedest layers optional stream compression on top of
// pkg/serialize's files-in-directory Destination, selecting among the
// three compression codecs the wider example pack depends on for exactly
// this kind of per-file compression.
package filedest

import (
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/serialize"
)

// Codec selects a compression algorithm for a compressing Destination.
type Codec int

const (
	None Codec = iota
	Gzip
	Snappy
	LZ4
)

// Suffix is the conventional file extension a codec appends, e.g. when
// building a FileStrategy's suffix.
func (c Codec) Suffix() string {
	switch c {
	case Gzip:
		return ".gz"
	case Snappy:
		return ".sz"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// CompressingStrategy wraps a serialize.FileStrategy so every destination
// it opens writes through the configured codec before hitting disk.
type CompressingStrategy[T meta.Copyable[T]] struct {
	inner *serialize.FileStrategy[T]
	codec Codec
	level int
}

// NewCompressingStrategy wraps inner with codec. level is the codec's
// compression level where applicable (gzip only; ignored otherwise) — 0
// selects each codec's default.
func NewCompressingStrategy[T meta.Copyable[T]](inner *serialize.FileStrategy[T], codec Codec, level int) *CompressingStrategy[T] {
	return &CompressingStrategy[T]{inner: inner, codec: codec, level: level}
}

// GetDestination implements serialize.DestinationStrategy.
func (s *CompressingStrategy[T]) GetDestination(item *meta.Item[T]) (serialize.Destination, error) {
	dest, err := s.inner.GetDestination(item)
	if err != nil {
		return nil, err
	}
	return &compressingDestination{inner: dest, codec: s.codec, level: s.level}, nil
}

type compressingDestination struct {
	inner serialize.Destination
	codec Codec
	level int

	closer io.Closer
}

func (d *compressingDestination) OpenStream() (io.Writer, error) {
	raw, err := d.inner.OpenStream()
	if err != nil {
		return nil, err
	}
	switch d.codec {
	case Gzip:
		level := d.level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		w, err := gzip.NewWriterLevel(raw, level)
		if err != nil {
			return nil, fmt.Errorf("filedest: gzip writer: %w", err)
		}
		d.closer = w
		return w, nil
	case Snappy:
		w := snappy.NewBufferedWriter(raw)
		d.closer = w
		return w, nil
	case LZ4:
		w := lz4.NewWriter(raw)
		d.closer = w
		return w, nil
	default:
		return raw, nil
	}
}

func (d *compressingDestination) Close() error {
	var codecErr error
	if d.closer != nil {
		codecErr = d.closer.Close()
		d.closer = nil
	}
	innerErr := d.inner.Close()
	if codecErr != nil {
		return codecErr
	}
	return innerErr
}
