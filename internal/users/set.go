// SPDX-License-Identifier: MIT

package users

// Set is an insertion-ordered set of users. The zero value is not usable;
// construct with NewSet.
type Set struct {
	items []*User
	index map[*User]struct{}
}

// NewSet returns a set containing the given users.
func NewSet(us ...*User) *Set {
	s := &Set{index: make(map[*User]struct{}, len(us))}
	for _, u := range us {
		s.Add(u)
	}
	return s
}

// Add inserts u and reports whether it was absent.
func (s *Set) Add(u *User) bool {
	if _, ok := s.index[u]; ok {
		return false
	}
	s.index[u] = struct{}{}
	s.items = append(s.items, u)
	return true
}

// Remove deletes u and reports whether it was present.
func (s *Set) Remove(u *User) bool {
	if _, ok := s.index[u]; !ok {
		return false
	}
	delete(s.index, u)
	for i, it := range s.items {
		if it == u {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

// Has reports membership.
func (s *Set) Has(u *User) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[u]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Slice returns a copy of the members in insertion order.
func (s *Set) Slice() []*User {
	if s == nil {
		return nil
	}
	return append([]*User(nil), s.items...)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return NewSet(s.Slice()...)
}

// Clear removes every member.
func (s *Set) Clear() {
	s.items = nil
	s.index = make(map[*User]struct{})
}
