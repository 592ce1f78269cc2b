// Package enum provides closed, case-insensitive enumerations.
// Resolution compares raw input against each variant's canonical text
// using Unicode case folding; there is no partial or fuzzy matching.
package enum

import (
	"fmt"
	"strings"
)

// Variant is the set of underlying kinds an enumeration can carry.
// Integer variants use their decimal text as the canonical value.
type Variant interface {
	~string | ~int
}

// ResolutionError reports an input that matches no variant.
type ResolutionError struct {
	Enum string
	Raw  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("'%s' is not a valid %s", e.Raw, e.Enum)
}

// Set is an immutable enumeration of variants.
type Set[T Variant] struct {
	name     string
	variants []T
	text     []string
}

// New builds a Set. It panics when two variants collide under case
// folding, since that makes resolution ambiguous.
func New[T Variant](name string, variants ...T) Set[T] {
	s := Set[T]{
		name:     name,
		variants: make([]T, 0, len(variants)),
		text:     make([]string, 0, len(variants)),
	}
	for _, v := range variants {
		canonical := fmt.Sprint(v)
		for _, existing := range s.text {
			if strings.EqualFold(existing, canonical) {
				panic(fmt.Sprintf("enum %s: duplicate variant %q", name, canonical))
			}
		}
		s.variants = append(s.variants, v)
		s.text = append(s.text, canonical)
	}
	return s
}

// Name returns the enumeration name used in error messages.
func (s Set[T]) Name() string { return s.name }

// Values returns the variants in declaration order.
func (s Set[T]) Values() []T {
	out := make([]T, len(s.variants))
	copy(out, s.variants)
	return out
}

// Resolve returns the variant whose canonical text equals raw under case folding.
func (s Set[T]) Resolve(raw string) (T, error) {
	for i, text := range s.text {
		if strings.EqualFold(text, raw) {
			return s.variants[i], nil
		}
	}
	var zero T
	return zero, &ResolutionError{Enum: s.name, Raw: raw}
}

// ResolveAll resolves every input, stopping at the first failure.
func (s Set[T]) ResolveAll(raws []string) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := s.Resolve(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Contains reports whether raw resolves to a variant.
func (s Set[T]) Contains(raw string) bool {
	_, err := s.Resolve(raw)
	return err == nil
}
