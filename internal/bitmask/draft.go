package bitmask

// Draft holds an uncommitted multi-select edit. Dropping it is the cancel path:
// nothing is written until the caller commits Selection().
type Draft struct {
	domain   Descriptor
	original Selection
	current  Selection
}

// NewDraft starts an edit from the currently stored selection.
func NewDraft(domain Descriptor, stored Selection) *Draft {
	return &Draft{domain: domain, original: stored, current: stored}
}

// Set checks or unchecks the flag at index.
func (d *Draft) Set(index int, on bool) error {
	s, err := d.domain.SetIndex(d.current, index, on)
	if err != nil {
		return err
	}
	d.current = s
	return nil
}

// Domain returns the domain being edited.
func (d *Draft) Domain() Descriptor { return d.domain }

// Selection returns the edited selection.
func (d *Draft) Selection() Selection { return d.current }

// Checked returns the per-flag checked state of the draft.
func (d *Draft) Checked() []bool { return d.domain.Checked(d.current) }

// Dirty reports whether the draft differs from the stored selection.
func (d *Draft) Dirty() bool { return d.current != d.original }
