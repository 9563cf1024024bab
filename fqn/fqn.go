// Package fqn implements fully qualified names: hierarchical paths that
// address nodes in the cache tree, e.g. "/org/acme/users".
package fqn

import (
	"strings"
)

// Separator delimits path elements in the string form of an Fqn.
const Separator = "/"

// Fqn is an immutable hierarchical path. The zero value is the root.
type Fqn struct {
	elems []string
}

// Root is the Fqn with no elements.
var Root = Fqn{}

// New builds an Fqn from its elements. Empty elements are dropped.
func New(elems ...string) Fqn {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if e != "" {
			out = append(out, e)
		}
	}
	return Fqn{elems: out}
}

// Parse splits s on Separator. Leading, trailing and repeated separators are
// ignored, so "/a/b", "a/b/" and "//a//b" all denote the same path.
func Parse(s string) Fqn {
	return New(strings.Split(s, Separator)...)
}

// Len returns the number of elements.
func (f Fqn) Len() int { return len(f.elems) }

// IsRoot reports whether f has no elements.
func (f Fqn) IsRoot() bool { return len(f.elems) == 0 }

// Get returns the i-th element.
func (f Fqn) Get(i int) string { return f.elems[i] }

// Elements returns a copy of the path elements.
func (f Fqn) Elements() []string {
	return append([]string(nil), f.elems...)
}

// LastElement returns the final element, or "" for the root.
func (f Fqn) LastElement() string {
	if len(f.elems) == 0 {
		return ""
	}
	return f.elems[len(f.elems)-1]
}

// Parent returns f without its last element. The parent of the root is the root.
func (f Fqn) Parent() Fqn {
	if len(f.elems) == 0 {
		return f
	}
	return Fqn{elems: f.elems[:len(f.elems)-1:len(f.elems)-1]}
}

// Ancestor returns the first n elements of f. n is clamped to [0, Len()].
func (f Fqn) Ancestor(n int) Fqn {
	if n <= 0 {
		return Root
	}
	if n >= len(f.elems) {
		return f
	}
	return Fqn{elems: f.elems[:n:n]}
}

// Append returns a new Fqn with elems added below f.
func (f Fqn) Append(elems ...string) Fqn {
	out := make([]string, 0, len(f.elems)+len(elems))
	out = append(out, f.elems...)
	for _, e := range elems {
		if e != "" {
			out = append(out, e)
		}
	}
	return Fqn{elems: out}
}

// Equal reports whether f and o have identical elements.
func (f Fqn) Equal(o Fqn) bool {
	if len(f.elems) != len(o.elems) {
		return false
	}
	for i := range f.elems {
		if f.elems[i] != o.elems[i] {
			return false
		}
	}
	return true
}

// IsChildOf reports whether f is a strict descendant of parent.
func (f Fqn) IsChildOf(parent Fqn) bool {
	return len(f.elems) > len(parent.elems) && f.hasPrefix(parent)
}

// IsChildOrEquals reports whether f equals parent or descends from it.
func (f Fqn) IsChildOrEquals(parent Fqn) bool {
	return len(f.elems) >= len(parent.elems) && f.hasPrefix(parent)
}

func (f Fqn) hasPrefix(p Fqn) bool {
	for i := range p.elems {
		if f.elems[i] != p.elems[i] {
			return false
		}
	}
	return true
}

// Rebase replaces the prefix from of f with to. f must satisfy
// f.IsChildOrEquals(from); otherwise f is returned unchanged.
func (f Fqn) Rebase(from, to Fqn) Fqn {
	if !f.IsChildOrEquals(from) {
		return f
	}
	return to.Append(f.elems[len(from.elems):]...)
}

// String renders f as "/a/b"; the root renders as "/".
func (f Fqn) String() string {
	if len(f.elems) == 0 {
		return Separator
	}
	return Separator + strings.Join(f.elems, Separator)
}
