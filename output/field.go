package output

import (
	"errors"
	"fmt"
	"sync"
)

// Association records which mesh entity a field is stored on
type Association string

const (
	CellAssociation  Association = "cell"
	PointAssociation Association = "point"
)

// Field is a derived mesh field in flat component order: element i occupies
// Values[i*Components : (i+1)*Components]
type Field struct {
	Name        string
	Time        string
	Association Association
	Type        string // scalar, vector or tensor
	Components  int
	Values      []float64
}

// Len returns the number of mesh elements in the field
func (f *Field) Len() int {
	if f.Components == 0 {
		return 0
	}
	return len(f.Values) / f.Components
}

// Element returns the components of element i
func (f *Field) Element(i int) []float64 {
	return f.Values[i*f.Components : (i+1)*f.Components]
}

func (f *Field) validate() error {
	if f.Name == "" {
		return errors.New("field has no name")
	}
	if f.Components < 1 {
		return fmt.Errorf("field %q: components must be positive, got %d", f.Name, f.Components)
	}
	if len(f.Values)%f.Components != 0 {
		return fmt.Errorf("field %q: %d values is not a multiple of %d components",
			f.Name, len(f.Values), f.Components)
	}
	return nil
}

// Writer persists derived fields. Each call is independent; failures are
// reported and never retried.
type Writer interface {
	WriteField(f *Field) error
}

// MemoryWriter keeps written fields in memory, in write order
type MemoryWriter struct {
	mu     sync.Mutex
	Fields []*Field
}

func (w *MemoryWriter) WriteField(f *Field) error {
	if err := f.validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Fields = append(w.Fields, f)
	return nil
}

// Lookup returns the last written field with the given name
func (w *MemoryWriter) Lookup(name string) (*Field, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(w.Fields) - 1; i >= 0; i-- {
		if w.Fields[i].Name == name {
			return w.Fields[i], true
		}
	}
	return nil, false
}

// Names returns the written field names in write order
func (w *MemoryWriter) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, len(w.Fields))
	for i, f := range w.Fields {
		names[i] = f.Name
	}
	return names
}
