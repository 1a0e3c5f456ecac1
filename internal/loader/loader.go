// Package loader opens viewer inputs: bare DEX files, ARM64 JNI libraries
// and APK/ZIP/JAR archives containing either.
package loader

import (
	"archive/zip"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dexview/internal/container"
	"dexview/internal/dex"
	"dexview/internal/dexfmt"
	"dexview/internal/elfx"
)

// DefaultEntry is the archive entry extracted when Options.Entry is empty.
const DefaultEntry = "classes.dex"

// archiveExts lists extensions that are opened as zip archives.
var archiveExts = map[string]bool{".apk": true, ".zip": true, ".jar": true}

// Options controls how inputs are opened.
type Options struct {
	Entry   string         // archive entry to extract; default classes.dex
	TempDir string         // directory for extracted entries; default os.TempDir
	Decode  dexfmt.Options // DEX decoder options
}

func (o Options) entry() string {
	if o.Entry != "" {
		return o.Entry
	}
	return DefaultEntry
}

// File is an opened container together with the temporary file it was
// extracted to, if any. Close disposes both exactly once.
type File struct {
	container.Container
	Path string // path the caller opened

	temp   string
	closed bool
}

// Temp returns the extracted temporary file, or "" for direct inputs.
func (f *File) Temp() string { return f.temp }

// Unwrap returns the decoded container.
func (f *File) Unwrap() container.Container { return f.Container }

// Close releases the container and removes the temporary file. Calls after
// the first are no-ops.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	err := f.Container.Close()
	if f.temp != "" {
		if rerr := os.Remove(f.temp); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) && err == nil {
			err = rerr
		}
		f.temp = ""
	}
	return err
}

// IsArchive reports whether path is opened as a zip archive.
func IsArchive(path string) bool {
	return archiveExts[strings.ToLower(filepath.Ext(path))]
}

// Open opens path. Archives are extracted to a temporary file first; the
// temporary file is removed again if extraction or decoding fails.
func Open(path string, opts Options) (*File, error) {
	if !IsArchive(path) {
		c, err := decode(path, path, opts)
		if err != nil {
			return nil, err
		}
		return &File{Container: c, Path: path}, nil
	}

	tmp, err := extract(path, opts.entry(), opts.TempDir)
	if err != nil {
		return nil, err
	}
	c, err := decode(tmp, path+"!"+opts.entry(), opts)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}
	return &File{Container: c, Path: path, temp: tmp}, nil
}

// decode picks a decoder from the leading magic bytes.
func decode(path, label string, opts Options) (container.Container, error) {
	magic, err := readMagic(path)
	if err != nil {
		return nil, err
	}
	var c container.Container
	switch {
	case dex.IsDex(magic):
		c, err = dex.Open(path, opts.Decode)
	case string(magic[:4]) == elf.ELFMAG:
		c, err = elfx.OpenNative(path)
	default:
		err = container.ErrUnknownFormat
	}
	if err != nil {
		return nil, &container.FormatError{Path: label, Err: err}
	}
	return c, nil
}

func readMagic(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 8)
	n, err := io.ReadFull(f, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("loader: read: %w", err)
	}
	clear(magic[n:])
	return magic, nil
}

// extract copies entry out of the archive into a new temporary file.
// No file is left behind when the entry is missing or the copy fails.
func extract(archive, entry, dir string) (string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", &container.FormatError{Path: archive, Err: fmt.Errorf("open zip: %w", err)}
	}
	defer zr.Close()

	var zf *zip.File
	for _, f := range zr.File {
		if f.Name == entry {
			zf = f
			break
		}
	}
	if zf == nil {
		return "", &container.MissingEntryError{Archive: archive, Entry: entry}
	}

	rc, err := zf.Open()
	if err != nil {
		return "", &container.FormatError{Path: archive, Err: err}
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(dir, "dexview-*"+filepath.Ext(entry))
	if err != nil {
		return "", fmt.Errorf("loader: temp file: %w", err)
	}
	_, err = io.Copy(tmp, rc)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("loader: extract %s: %w", entry, err)
	}
	return tmp.Name(), nil
}
