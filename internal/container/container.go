// Package container reads and writes the zip archive that wraps a collection
// database, including the optional zstd layer around the newer entry.
package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	// EntryCompressed is the newer collection entry; its payload may be zstd framed.
	EntryCompressed = "collection.anki21b"
	// EntryLegacy is the older collection entry, always a raw database.
	EntryLegacy = "collection.anki2"
	// EntryMedia maps media file numbers to names. It is written empty.
	EntryMedia = "media"
)

// collectionEntries in order of preference.
var collectionEntries = []string{EntryCompressed, EntryLegacy}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ErrNoCollection is wrapped in an *Error when neither collection entry exists.
var ErrNoCollection = errors.New("no collection file found in archive")

// Error reports a missing or corrupt archive.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("container: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Unpack returns every file entry of the archive keyed by name, undecoded.
func Unpack(data []byte) (map[string][]byte, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return nil, &Error{Op: "read " + f.Name, Err: err}
		}
		entries[f.Name] = b
	}
	return entries, nil
}

// ReadCollection extracts the collection database from the archive. The
// newer entry is preferred; if its payload is a zstd frame it is decompressed,
// otherwise the bytes are returned as stored. entry names the chosen file.
func ReadCollection(data []byte) (payload []byte, entry string, err error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, "", err
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var chosen *zip.File
	for _, name := range collectionEntries {
		if f, ok := files[name]; ok {
			chosen = f
			break
		}
	}
	if chosen == nil {
		return nil, "", &Error{Op: "find collection", Err: ErrNoCollection}
	}

	raw, err := readEntry(chosen)
	if err != nil {
		return nil, "", &Error{Op: "read " + chosen.Name, Err: err}
	}

	if chosen.Name == EntryCompressed && IsCompressed(raw) {
		raw, err = decompress(raw)
		if err != nil {
			return nil, "", &Error{Op: "decompress " + chosen.Name, Err: err}
		}
	}
	return raw, chosen.Name, nil
}

// IsCompressed reports whether b starts with a zstd frame header.
func IsCompressed(b []byte) bool {
	return bytes.HasPrefix(b, zstdMagic)
}

// Option configures PackCollection.
type Option func(*packConfig)

type packConfig struct {
	compress bool
	modified time.Time
}

// WithCompression zstd-compresses the collection payload before packing.
// By default the payload is stored raw under the newer entry name.
func WithCompression() Option {
	return func(c *packConfig) { c.compress = true }
}

// WithModified sets the modification time recorded on every entry.
func WithModified(t time.Time) Option {
	return func(c *packConfig) { c.modified = t }
}

// PackCollection packs a collection database into an archive under the newer
// entry name, alongside an empty media map.
func PackCollection(payload []byte, opts ...Option) ([]byte, error) {
	cfg := packConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.compress {
		var err error
		payload, err = compress(payload)
		if err != nil {
			return nil, &Error{Op: "compress " + EntryCompressed, Err: err}
		}
	}

	return pack(map[string][]byte{
		EntryCompressed: payload,
		EntryMedia:      []byte("{}"),
	}, cfg.modified)
}

// Pack writes entries into a new archive. Entries are written in name order
// so equal input yields equal output.
func Pack(entries map[string][]byte) ([]byte, error) {
	return pack(entries, time.Time{})
}

func pack(entries map[string][]byte, modified time.Time) ([]byte, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if !modified.IsZero() {
			hdr.Modified = modified
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			zw.Close()
			return nil, &Error{Op: "create " + name, Err: err}
		}
		if _, err := w.Write(entries[name]); err != nil {
			zw.Close()
			return nil, &Error{Op: "write " + name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &Error{Op: "finish archive", Err: err}
	}
	return buf.Bytes(), nil
}

func openZip(data []byte) (*zip.Reader, error) {
	if len(data) == 0 {
		return nil, &Error{Op: "open", Err: errors.New("archive is empty")}
	}
	if !hasZipSignature(data) {
		return nil, &Error{Op: "open", Err: errors.New("not a zip archive")}
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	return zr, nil
}

// hasZipSignature accepts the local file, empty archive and spanned markers.
func hasZipSignature(b []byte) bool {
	if len(b) < 4 || b[0] != 'P' || b[1] != 'K' {
		return false
	}
	switch {
	case b[2] == 0x03 && b[3] == 0x04,
		b[2] == 0x05 && b[3] == 0x06,
		b[2] == 0x07 && b[3] == 0x08:
		return true
	}
	return false
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decompress(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(b, nil)
}

func compress(b []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	out := enc.EncodeAll(b, nil)
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
