// Package taxonomy defines the word types known to the registry and the
// relations used to propagate mutations between them.
//
// A word type is a short identifier such as "ad". It may carry a trailing
// strength suffix: "ad+" is the strict variant of base "ad", "ad-" the loose
// one.
package taxonomy

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	dErrors "wordhub/pkg/domain-errors"
)

// All is the pseudo-type accepted by reset, push and search.
const All = "all"

// Strength of a word type relative to its base.
type Strength int

const (
	StrengthNeutral Strength = iota
	StrengthStrict
	StrengthLoose
)

func (s Strength) String() string {
	switch s {
	case StrengthStrict:
		return "strict"
	case StrengthLoose:
		return "loose"
	default:
		return "neutral"
	}
}

// WordType identifies one category of patterns.
type WordType string

func (t WordType) String() string { return string(t) }

// Strength reports the type's suffix strength.
func (t WordType) Strength() Strength {
	switch {
	case strings.HasSuffix(string(t), "+"):
		return StrengthStrict
	case strings.HasSuffix(string(t), "-"):
		return StrengthLoose
	default:
		return StrengthNeutral
	}
}

// Base strips the strength suffix.
func (t WordType) Base() WordType {
	if t.Strength() == StrengthNeutral {
		return t
	}
	return t[:len(t)-1]
}

// Suffixed reports whether the type carries a strength suffix.
func (t WordType) Suffixed() bool {
	return t.Strength() != StrengthNeutral
}

// Taxonomy is the fixed, ordered set of known word types.
type Taxonomy struct {
	types []WordType
	index map[WordType]struct{}
}

// New validates and builds a taxonomy. Order is preserved.
func New(types ...string) (*Taxonomy, error) {
	tx := &Taxonomy{index: make(map[WordType]struct{}, len(types))}
	for _, raw := range types {
		t := WordType(raw)
		if err := validate(t); err != nil {
			return nil, err
		}
		if _, dup := tx.index[t]; dup {
			return nil, fmt.Errorf("duplicate word type %q", raw)
		}
		tx.index[t] = struct{}{}
		tx.types = append(tx.types, t)
	}
	if len(tx.types) == 0 {
		return nil, fmt.Errorf("taxonomy needs at least one word type")
	}
	return tx, nil
}

// MustNew is New for static definitions and tests.
func MustNew(types ...string) *Taxonomy {
	tx, err := New(types...)
	if err != nil {
		panic(err)
	}
	return tx
}

func validate(t WordType) error {
	if t == "" {
		return fmt.Errorf("empty word type")
	}
	if t == All {
		return fmt.Errorf("%q is reserved", All)
	}
	if t.Base() == "" {
		return fmt.Errorf("word type %q has no base", t)
	}
	for _, r := range string(t.Base()) {
		if unicode.IsSpace(r) || r == '+' || r == '-' {
			return fmt.Errorf("invalid word type %q", t)
		}
	}
	return nil
}

// Types returns the known types in declaration order.
func (tx *Taxonomy) Types() []WordType {
	return slices.Clone(tx.types)
}

// Has reports whether t is a known type.
func (tx *Taxonomy) Has(t WordType) bool {
	_, ok := tx.index[t]
	return ok
}

// Parse resolves user input to a known type.
func (tx *Taxonomy) Parse(s string) (WordType, error) {
	t := WordType(strings.TrimSpace(s))
	if t == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "word type is required")
	}
	if !tx.Has(t) {
		return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown word type %q", s))
	}
	return t, nil
}

// ParseList resolves a whitespace separated list of types, deduplicated in
// input order.
func (tx *Taxonomy) ParseList(s string) ([]WordType, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at least one word type is required")
	}
	seen := make(map[WordType]struct{}, len(fields))
	out := make([]WordType, 0, len(fields))
	for _, f := range fields {
		t, err := tx.Parse(f)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
