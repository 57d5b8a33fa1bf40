package model

import "strings"

// Selection is an ordered set of unique repository references. A reference is
// either a bare repository name (owned by the authenticated user) or
// "owner/name". Adding an existing reference or removing an absent one is a
// no-op.
type Selection struct {
	refs []string
}

// NewSelection builds a selection from refs, dropping blanks and duplicates
// while keeping first-seen order.
func NewSelection(refs ...string) Selection {
	var s Selection
	for _, ref := range refs {
		s.Add(ref)
	}
	return s
}

// Add appends ref if absent. Returns true when the selection changed.
func (s *Selection) Add(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || s.Contains(ref) {
		return false
	}
	s.refs = append(s.refs, ref)
	return true
}

// Remove deletes ref if present. Returns true when the selection changed.
func (s *Selection) Remove(ref string) bool {
	ref = strings.TrimSpace(ref)
	for i, r := range s.refs {
		if r == ref {
			s.refs = append(s.refs[:i:i], s.refs[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether ref is selected.
func (s Selection) Contains(ref string) bool {
	for _, r := range s.refs {
		if r == ref {
			return true
		}
	}
	return false
}

// Len returns the number of selected references.
func (s Selection) Len() int {
	return len(s.refs)
}

// Refs returns a copy of the selected references in selection order.
func (s Selection) Refs() []string {
	out := make([]string, len(s.refs))
	copy(out, s.refs)
	return out
}

// SplitRef splits a selection reference into owner and name. A bare name
// yields defaultOwner.
func SplitRef(ref, defaultOwner string) (owner, name string) {
	if i := strings.Index(ref, "/"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return defaultOwner, ref
}
