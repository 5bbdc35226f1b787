package output

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DataDog/zstd"
)

const zstdSuffix = ".zst"

// DirWriter writes one file per field under Root/<time>/<name>. Files are
// plain text unless Compress is set, in which case they are zstd framed and
// carry a .zst suffix.
type DirWriter struct {
	Root     string
	Compress bool
	Level    int
}

func NewDirWriter(root string, compress bool, level int) (*DirWriter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", root, err)
	}
	if level == 0 {
		level = zstd.DefaultCompression
	}
	return &DirWriter{Root: root, Compress: compress, Level: level}, nil
}

// Path returns the file a field named name at time would be written to
func (w *DirWriter) Path(time, name string) string {
	p := filepath.Join(w.Root, time, name)
	if w.Compress {
		p += zstdSuffix
	}
	return p
}

func (w *DirWriter) WriteField(f *Field) error {
	if err := f.validate(); err != nil {
		return err
	}
	dir := filepath.Join(w.Root, f.Time)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create time directory %q: %w", dir, err)
	}
	b := encodeText(f)
	if w.Compress {
		var err error
		if b, err = zstd.CompressLevel(nil, b, w.Level); err != nil {
			return fmt.Errorf("failed to compress field %q: %w", f.Name, err)
		}
	}
	path := w.Path(f.Time, f.Name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write field %q: %w", f.Name, err)
	}
	return nil
}

// ReadField reads back a field written by this writer
func (w *DirWriter) ReadField(time, name string) (*Field, error) {
	path := w.Path(time, name)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field file %q: %w", path, err)
	}
	if w.Compress {
		if b, err = zstd.Decompress(nil, b); err != nil {
			return nil, fmt.Errorf("failed to decompress %q: %w", path, err)
		}
	}
	f, err := decodeText(b)
	if err != nil {
		return nil, fmt.Errorf("field file %q: %w", path, err)
	}
	return f, nil
}

// encodeText renders a header of "key value" lines followed by one line of
// components per element
func encodeText(f *Field) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "name %s\n", f.Name)
	fmt.Fprintf(&buf, "time %s\n", f.Time)
	fmt.Fprintf(&buf, "association %s\n", f.Association)
	fmt.Fprintf(&buf, "type %s\n", f.Type)
	fmt.Fprintf(&buf, "components %d\n", f.Components)
	fmt.Fprintf(&buf, "count %d\n", f.Len())
	for i := 0; i < f.Len(); i++ {
		for j, v := range f.Element(i) {
			if j > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func decodeText(b []byte) (*Field, error) {
	var (
		f     = &Field{}
		count = -1
	)
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for header := 0; header < 6; header++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("truncated header")
		}
		key, val, ok := strings.Cut(sc.Text(), " ")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", sc.Text())
		}
		var err error
		switch key {
		case "name":
			f.Name = val
		case "time":
			f.Time = val
		case "association":
			f.Association = Association(val)
		case "type":
			f.Type = val
		case "components":
			f.Components, err = strconv.Atoi(val)
		case "count":
			count, err = strconv.Atoi(val)
		default:
			return nil, fmt.Errorf("unknown header key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", key, err)
		}
	}
	if count < 0 || f.Components < 1 {
		return nil, fmt.Errorf("invalid count %d or components %d", count, f.Components)
	}
	f.Values = make([]float64, 0, count*f.Components)
	for i := 0; i < count; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("expected %d elements, found %d", count, i)
		}
		words := strings.Fields(sc.Text())
		if len(words) != f.Components {
			return nil, fmt.Errorf("element %d has %d components, expected %d",
				i, len(words), f.Components)
		}
		for _, w := range words {
			v, err := strconv.ParseFloat(w, 64)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			f.Values = append(f.Values, v)
		}
	}
	return f, sc.Err()
}
