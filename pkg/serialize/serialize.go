// Package serialize provides the multi-output serialization surface: an
// ItemSerializer writes one item's payload to an already-open stream, an
// ItemCollectionSerializer writes a sequence, and a DestinationStrategy
// computes a closable Destination per item so a stage can fan out to one
// file (or Kafka record, see pkg/kafkadest) per item.
package serialize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// ItemSerializer writes one item's payload to an already-open stream.
// Stream lifecycle is the caller's responsibility.
type ItemSerializer[T meta.Copyable[T]] interface {
	Serialize(item *meta.Item[T], w io.Writer) error
}

// ItemSerializerFunc adapts a plain function to ItemSerializer.
type ItemSerializerFunc[T meta.Copyable[T]] func(item *meta.Item[T], w io.Writer) error

func (f ItemSerializerFunc[T]) Serialize(item *meta.Item[T], w io.Writer) error { return f(item, w) }

// ItemCollectionSerializer writes a sequence of items to one stream.
type ItemCollectionSerializer[T meta.Copyable[T]] interface {
	Serialize(items []*meta.Item[T], w io.Writer) error
}

// Concatenating is the simple ItemCollectionSerializer: it calls the
// wrapped ItemSerializer once per item, in order, onto the same stream.
type Concatenating[T meta.Copyable[T]] struct {
	Item ItemSerializer[T]
}

// Serialize implements ItemCollectionSerializer.
func (c Concatenating[T]) Serialize(items []*meta.Item[T], w io.Writer) error {
	for _, it := range items {
		if err := c.Item.Serialize(it, w); err != nil {
			return err
		}
	}
	return nil
}

// Destination is an abstract, closable target into which a single item is
// serialized.
type Destination interface {
	OpenStream() (io.Writer, error)
	Close() error
}

// DestinationStrategy computes a Destination from an item.
type DestinationStrategy[T meta.Copyable[T]] interface {
	GetDestination(item *meta.Item[T]) (Destination, error)
}

// ErrNoItemID is returned by strategies that must name a file (or topic
// key, or partition) after an item's identifier when the item carries
// none.
var ErrNoItemID = fmt.Errorf("item carries no ItemId")

// NameTransform rewrites an ItemId's raw value before it is embedded in a
// destination name, e.g. to percent-escape path-unsafe characters.
type NameTransform func(string) string

// Identity is the default NameTransform: the raw ItemId value, unchanged.
func Identity(v string) string { return v }

// FileStrategy is the standard "files-in-directory" DestinationStrategy:
// each item's destination file is named prefix + transform(itemId.Value())
// + suffix, located inside a directory validated as writable at
// construction time. It never creates the directory itself.
type FileStrategy[T meta.Copyable[T]] struct {
	dir       string
	prefix    string
	suffix    string
	transform NameTransform
}

// NewFileStrategy validates that dir exists, is a directory, and is
// writable, then returns a FileStrategy rooted there. transform may be
// nil, in which case Identity is used.
func NewFileStrategy[T meta.Copyable[T]](dir, prefix, suffix string, transform NameTransform) (*FileStrategy[T], error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("serialize: destination directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("serialize: destination path %q is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return nil, fmt.Errorf("serialize: destination directory %q is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	if transform == nil {
		transform = Identity
	}
	return &FileStrategy[T]{dir: dir, prefix: prefix, suffix: suffix, transform: transform}, nil
}

// GetDestination implements DestinationStrategy. It names the file after
// the item's first ItemId; an item with none yields ErrNoItemID, which
// callers (see NewStage) turn into a StageProcessingError decorated with
// whatever identification is otherwise available.
func (s *FileStrategy[T]) GetDestination(item *meta.Item[T]) (Destination, error) {
	ids := item.IDs()
	if len(ids) == 0 {
		return nil, ErrNoItemID
	}
	name := s.prefix + s.transform(ids[0].Value()) + s.suffix
	path := filepath.Join(s.dir, name)
	return &fileDestination{path: path}, nil
}

// Path is exposed for tests and for collaborators (e.g. filedest) that
// need to layer a compression codec on top of the raw path.
func (s *FileStrategy[T]) Path(itemID string) string {
	return filepath.Join(s.dir, s.prefix+s.transform(itemID)+s.suffix)
}

type fileDestination struct {
	path string
	file *os.File
}

func (d *fileDestination) OpenStream() (io.Writer, error) {
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("serialize: open %q: %w", d.path, err)
	}
	d.file = f
	return f, nil
}

func (d *fileDestination) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// sanitizeSegment is a small helper NameTransforms can compose with: it
// mirrors a conventional sanitizeFilename helper, replacing path-hostile
// characters with underscores so an ItemId (often a URN containing ':')
// is safe to embed in a filename.
func sanitizeSegment(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	return replacer.Replace(name)
}

// Sanitized is a NameTransform that percent-free-escapes an ItemId value
// for safe use as a filename segment.
func Sanitized(v string) string { return sanitizeSegment(v) }
