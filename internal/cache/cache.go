// Package cache stores parsed rule trees on disk, keyed by a digest of the
// stylesheet source, so unchanged stylesheets are not parsed twice.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/internal/encode"
)

// MagicHeader starts every cache entry.
var MagicHeader = []byte("CSSRULE1")

// ErrCorrupt is returned for entries that cannot be decoded.
var ErrCorrupt = errors.New("corrupt cache entry")

const ext = ".cbor.zst"

// Dir is a cache directory. Entries are named "<digest>.cbor.zst" and hold
// the header followed by the zstd-compressed canonical encoding of a tree.
type Dir struct {
	path    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open returns the cache rooted at path, creating the directory if needed.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Dir{path: path, encoder: enc, decoder: dec}, nil
}

// Path returns the cache directory.
func (d *Dir) Path() string { return d.path }

// Close releases the compressor resources.
func (d *Dir) Close() error {
	d.decoder.Close()
	return d.encoder.Close()
}

func (d *Dir) filename(src []byte) string {
	return filepath.Join(d.path, encode.SourceKey(src)+ext)
}

// Get returns the tree cached for src. The boolean is false on a miss.
func (d *Dir) Get(src []byte) (*ast.StyleSheet, bool, error) {
	data, err := os.ReadFile(d.filename(src))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	if !bytes.HasPrefix(data, MagicHeader) {
		return nil, false, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	raw, err := d.decoder.DecodeAll(data[len(MagicHeader):], nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	ss, err := encode.UnmarshalCBOR(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	return ss, true, nil
}

// Put stores ss as the tree for src. The entry is written to a temporary
// file first and renamed into place, so readers never see a partial entry.
func (d *Dir) Put(src []byte, ss *ast.StyleSheet) error {
	raw, err := encode.MarshalCBOR(ss)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(MagicHeader)+len(raw))
	buf = append(buf, MagicHeader...)
	buf = d.encoder.EncodeAll(raw, buf)

	f, err := os.CreateTemp(d.path, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), d.filename(src))
}
