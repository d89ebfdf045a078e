// Package bitmask models closed, ordered domains of named flags whose selections
// persist as a single integer.
//
// Every flag of a domain owns exactly one bit. A Selection is the union of chosen
// flags; the integer value is the persisted wire format and is stable across
// versions, so flag values must never be renumbered.
package bitmask

import (
	"errors"
	"fmt"
	"slices"
)

// Selection is the persisted union of chosen flags.
type Selection uint32

var (
	// ErrStrayBits is returned when a selection carries bits no flag of the domain owns.
	ErrStrayBits = errors.New("selection contains bits outside the domain")
	// ErrIndexOutOfRange is returned by indexed edits past the end of the domain.
	ErrIndexOutOfRange = errors.New("flag index out of range")
)

// Flag is implemented by the enumerated flag types of a domain.
type Flag interface {
	~uint32
	String() string
}

// Descriptor is the type-erased view of a Domain used by code that picks a domain
// at runtime (multi-select dialogs, HTTP handlers).
type Descriptor interface {
	Name() string
	Labels() []string
	Mask() Selection
	Validate(s Selection) error
	SetIndex(s Selection, index int, on bool) (Selection, error)
	Checked(s Selection) []bool
}

// Domain is a closed, ordered list of flags. The order defines presentation and
// is the authoritative index-to-flag mapping for indexed edits.
type Domain[F Flag] struct {
	name  string
	flags []F
	mask  Selection
}

// NewDomain builds a domain. It panics if a flag is not a power of two or two
// flags share a bit, since both are programming errors in a static table.
func NewDomain[F Flag](name string, flags ...F) *Domain[F] {
	var mask Selection
	for _, f := range flags {
		v := Selection(f)
		if v == 0 || v&(v-1) != 0 {
			panic(fmt.Sprintf("bitmask: flag %s of domain %s is not a power of two", f, name))
		}
		if mask&v != 0 {
			panic(fmt.Sprintf("bitmask: flag %s of domain %s reuses bit %#x", f, name, uint32(v)))
		}
		mask |= v
	}
	return &Domain[F]{name: name, flags: slices.Clone(flags), mask: mask}
}

// Name returns the domain name.
func (d *Domain[F]) Name() string { return d.name }

// All returns the flags in presentation order.
func (d *Domain[F]) All() []F { return slices.Clone(d.flags) }

// Mask returns the union of every flag in the domain.
func (d *Domain[F]) Mask() Selection { return d.mask }

// Labels returns the flag names in presentation order.
func (d *Domain[F]) Labels() []string {
	labels := make([]string, len(d.flags))
	for i, f := range d.flags {
		labels[i] = f.String()
	}
	return labels
}

// Contains reports whether f belongs to the domain.
func (d *Domain[F]) Contains(f F) bool {
	return slices.Contains(d.flags, f)
}

// Toggle flips the bit of f. Flags outside the domain leave s unchanged.
func (d *Domain[F]) Toggle(s Selection, f F) Selection {
	if !d.Contains(f) {
		return s
	}
	return s ^ Selection(f)
}

// With sets or clears the bit of f.
func (d *Domain[F]) With(s Selection, f F, on bool) Selection {
	if !d.Contains(f) {
		return s
	}
	if on {
		return s | Selection(f)
	}
	return s &^ Selection(f)
}

// Test reports whether f is selected in s.
func (d *Domain[F]) Test(s Selection, f F) bool {
	return s&Selection(f) != 0
}

// Union builds a selection from the given flags.
func (d *Domain[F]) Union(flags ...F) Selection {
	var s Selection
	for _, f := range flags {
		s = d.With(s, f, true)
	}
	return s
}

// Flags returns the selected flags in presentation order.
func (d *Domain[F]) Flags(s Selection) []F {
	var out []F
	for _, f := range d.flags {
		if d.Test(s, f) {
			out = append(out, f)
		}
	}
	return out
}

// Checked returns one entry per flag, in presentation order.
func (d *Domain[F]) Checked(s Selection) []bool {
	checked := make([]bool, len(d.flags))
	for i, f := range d.flags {
		checked[i] = d.Test(s, f)
	}
	return checked
}

// Validate rejects selections with stray bits.
func (d *Domain[F]) Validate(s Selection) error {
	if stray := s &^ d.mask; stray != 0 {
		return fmt.Errorf("%w: domain %s, stray bits %#x", ErrStrayBits, d.name, uint32(stray))
	}
	return nil
}

// At returns the flag at index i.
func (d *Domain[F]) At(i int) (F, error) {
	if i < 0 || i >= len(d.flags) {
		var zero F
		return zero, fmt.Errorf("%w: domain %s has %d flags, got index %d", ErrIndexOutOfRange, d.name, len(d.flags), i)
	}
	return d.flags[i], nil
}

// SetIndex sets or clears the flag at the given presentation index.
func (d *Domain[F]) SetIndex(s Selection, index int, on bool) (Selection, error) {
	f, err := d.At(index)
	if err != nil {
		return s, err
	}
	return d.With(s, f, on), nil
}

// ParseFlag resolves a flag by its name.
func (d *Domain[F]) ParseFlag(name string) (F, bool) {
	for _, f := range d.flags {
		if f.String() == name {
			return f, true
		}
	}
	var zero F
	return zero, false
}

// ErrUnknownFlag is returned when a flag name is not part of a domain.
var ErrUnknownFlag = errors.New("unknown flag")

// SelectionOf builds a selection of d from flag names.
func SelectionOf(d Descriptor, names ...string) (Selection, error) {
	var s Selection
	labels := d.Labels()
	for _, name := range names {
		i := slices.Index(labels, name)
		if i < 0 {
			return 0, fmt.Errorf("%w: %q in domain %s (want one of %v)", ErrUnknownFlag, name, d.Name(), labels)
		}
		var err error
		if s, err = d.SetIndex(s, i, true); err != nil {
			return 0, err
		}
	}
	return s, nil
}

// LabelsOf returns the names of the flags set in s, in presentation order.
func LabelsOf(d Descriptor, s Selection) []string {
	var out []string
	labels := d.Labels()
	for i, on := range d.Checked(s) {
		if on {
			out = append(out, labels[i])
		}
	}
	return out
}
