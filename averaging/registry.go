package averaging

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/notargets/DGAverage/field"
)

// ErrUnknownStrategy is returned by New when the dictionary names a method
// that is not registered
var ErrUnknownStrategy = errors.New("unknown averaging method")

// MethodKey is the dictionary key holding the method type name
const MethodKey = "averagingMethod"

// Constructor builds a method of one strategy type
type Constructor[T field.Value[T], G field.Value[G]] func(p Params) (*Method[T, G], error)

// Registry maps method type names to constructors
type Registry[T field.Value[T], G field.Value[G]] struct {
	mu    sync.RWMutex
	ctors map[string]Constructor[T, G]
}

func NewRegistry[T field.Value[T], G field.Value[G]]() *Registry[T, G] {
	return &Registry[T, G]{ctors: make(map[string]Constructor[T, G])}
}

// Register adds a constructor; names are unique
func (r *Registry[T, G]) Register(name string, ctor Constructor[T, G]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ctors[name]; ok {
		return fmt.Errorf("averaging method %q already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

func (r *Registry[T, G]) Lookup(name string) (Constructor[T, G], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[name]
	return ctor, ok
}

// Names returns the registered names in sorted order
func (r *Registry[T, G]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the method named under MethodKey in p.Dict
func New[T field.Value[T], G field.Value[G]](r *Registry[T, G], p Params) (*Method[T, G], error) {
	name, err := p.Dict.Lookup(MethodKey)
	if err != nil {
		return nil, fmt.Errorf("averaging dictionary: %w", err)
	}
	ctor, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w %q, valid averaging methods are: %v",
			ErrUnknownStrategy, name, r.Names())
	}
	m, err := ctor(p)
	if err != nil {
		return nil, fmt.Errorf("failed to construct averaging method %q: %w", name, err)
	}
	return m, nil
}

var (
	ScalarMethods = NewRegistry[field.Scalar, field.Vector]()
	VectorMethods = NewRegistry[field.Vector, field.Tensor]()
)

func init() {
	registerStrategies(ScalarMethods, field.ScalarKind{})
	registerStrategies(VectorMethods, field.VectorKind{})
}

func registerStrategies[T field.Value[T], G field.Value[G]](r *Registry[T, G], kind field.Kind[T, G]) {
	for name, ctor := range map[string]Constructor[T, G]{
		"basic":  func(p Params) (*Method[T, G], error) { return NewBasic(p, kind) },
		"dual":   func(p Params) (*Method[T, G], error) { return NewDual(p, kind) },
		"moment": func(p Params) (*Method[T, G], error) { return NewMoment(p, kind) },
	} {
		if err := r.Register(name, ctor); err != nil {
			panic(err)
		}
	}
}
