package eviction

import "iter"

// LinkedList is an intrusive doubly linked list of entries with O(1)
// insert, unlink and relink. The front is the eviction end.
//
// An entry can sit in at most one LinkedList at a time.
type LinkedList struct {
	head *NodeEntry
	tail *NodeEntry
	len  int
}

// Len returns the number of linked entries.
func (l *LinkedList) Len() int { return l.len }

// Front returns the head entry, or nil.
func (l *LinkedList) Front() *NodeEntry { return l.head }

// Back returns the tail entry, or nil.
func (l *LinkedList) Back() *NodeEntry { return l.tail }

// Contains reports whether e is linked into a list.
func (l *LinkedList) Contains(e *NodeEntry) bool { return e.linked }

// PushFront links e at the head.
func (l *LinkedList) PushFront(e *NodeEntry) {
	e.prev = nil
	e.next = l.head
	if l.head != nil {
		l.head.prev = e
	}
	l.head = e
	if l.tail == nil {
		l.tail = e
	}
	e.linked = true
	l.len++
}

// PushBack links e at the tail.
func (l *LinkedList) PushBack(e *NodeEntry) {
	e.next = nil
	e.prev = l.tail
	if l.tail != nil {
		l.tail.next = e
	}
	l.tail = e
	if l.head == nil {
		l.head = e
	}
	e.linked = true
	l.len++
}

// MoveToFront relinks e at the head.
func (l *LinkedList) MoveToFront(e *NodeEntry) {
	if e == l.head {
		return
	}
	l.detach(e)
	e.prev = nil
	e.next = l.head
	if l.head != nil {
		l.head.prev = e
	}
	l.head = e
	if l.tail == nil {
		l.tail = e
	}
}

// MoveToBack relinks e at the tail.
func (l *LinkedList) MoveToBack(e *NodeEntry) {
	if e == l.tail {
		return
	}
	l.detach(e)
	e.next = nil
	e.prev = l.tail
	if l.tail != nil {
		l.tail.next = e
	}
	l.tail = e
	if l.head == nil {
		l.head = e
	}
}

// Remove unlinks e. Entries that are not linked are ignored.
func (l *LinkedList) Remove(e *NodeEntry) {
	if !e.linked {
		return
	}
	l.detach(e)
	e.prev, e.next = nil, nil
	e.linked = false
	l.len--
}

// Clear unlinks every entry.
func (l *LinkedList) Clear() {
	for e := l.head; e != nil; {
		next := e.next
		e.prev, e.next, e.linked = nil, nil, false
		e = next
	}
	l.head, l.tail, l.len = nil, nil, 0
}

// All yields entries from head to tail. The entry being yielded may be
// removed by the caller.
func (l *LinkedList) All() iter.Seq[*NodeEntry] {
	return func(yield func(*NodeEntry) bool) {
		for e := l.head; e != nil; {
			next := e.next
			if !yield(e) {
				return
			}
			e = next
		}
	}
}

func (l *LinkedList) detach(e *NodeEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if l.head == e {
		l.head = e.next
	}
	if l.tail == e {
		l.tail = e.prev
	}
}
