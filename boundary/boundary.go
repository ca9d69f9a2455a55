// Package boundary reads field boundaries from GeoJSON and KML files and
// writes analysis results back in the same formats.
package boundary

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/geomerr"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatGeoJSON
	FormatKML
)

func (f Format) String() string {
	switch f {
	case FormatGeoJSON:
		return "geojson"
	case FormatKML:
		return "kml"
	}
	return "unknown"
}

// FormatOf guesses the format from a file name, a trailing .zst is ignored.
func FormatOf(name string) Format {
	name, _ = trimZstd(strings.ToLower(name))
	switch filepath.Ext(name) {
	case ".geojson", ".json":
		return FormatGeoJSON
	case ".kml":
		return FormatKML
	}
	return FormatUnknown
}

// Field is a boundary ring in (lon, lat) degrees, as found in the file.
type Field struct {
	Name string
	Ring []orb.Point
}

func ReadFile(name string) (*Field, error) {
	format := FormatOf(name)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: unknown boundary format of %s", geomerr.ErrInvalidArgument, name)
	}

	r, err := openReader(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	field, err := Read(r, format)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if field.Name == "" {
		trimmed, _ := trimZstd(name)
		base := filepath.Base(trimmed)
		field.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return field, nil
}

// Read returns the first polygon's exterior ring.
func Read(r io.Reader, format Format) (*Field, error) {
	switch format {
	case FormatGeoJSON:
		return readGeoJSON(r)
	case FormatKML:
		return readKML(r)
	}
	return nil, fmt.Errorf("%w: unsupported boundary format %s", geomerr.ErrInvalidArgument, format)
}

func WriteFile(name string, g *analyzer.GeoResult) (err error) {
	format := FormatOf(name)
	if format == FormatUnknown {
		return fmt.Errorf("%w: unknown output format of %s", geomerr.ErrInvalidArgument, name)
	}

	w, err := openWriter(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", name, cerr)
		}
	}()

	return Write(w, format, g)
}

func Write(w io.Writer, format Format, g *analyzer.GeoResult) error {
	switch format {
	case FormatGeoJSON:
		return WriteGeoJSON(w, g)
	case FormatKML:
		return WriteKML(w, g)
	}
	return fmt.Errorf("%w: unsupported output format %s", geomerr.ErrInvalidArgument, format)
}

// trimZstd strips a .zst suffix of any case.
func trimZstd(name string) (string, bool) {
	const suffix = ".zst"
	if len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)], true
	}
	return name, false
}

func openReader(name string) (io.ReadCloser, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("can`t open file: %w", err)
	}

	if _, compressed := trimZstd(name); compressed {
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("can`t create zstd reader: %w", err)
		}

		return &zstdReadCloser{ReadCloser: dec.IOReadCloser(), file: file}, nil
	}

	return file, nil
}

type zstdReadCloser struct {
	io.ReadCloser
	file *os.File
}

func (z *zstdReadCloser) Close() error {
	z.ReadCloser.Close()
	return z.file.Close()
}

func openWriter(name string) (io.WriteCloser, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("can`t create file: %w", err)
	}

	if _, compressed := trimZstd(name); compressed {
		enc, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("can`t create zstd writer: %w", err)
		}
		return &zstdWriteCloser{Encoder: enc, file: file}, nil
	}

	return file, nil
}

type zstdWriteCloser struct {
	*zstd.Encoder
	file *os.File
}

func (z *zstdWriteCloser) Close() error {
	if err := z.Encoder.Close(); err != nil {
		z.file.Close()
		return err
	}
	return z.file.Close()
}
