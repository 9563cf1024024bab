package eviction

import (
	"fmt"
	"time"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// EventType is the kind of node lifecycle transition carried by an Event.
type EventType int

const (
	AddNodeEvent EventType = iota
	RemoveNodeEvent
	VisitNodeEvent
	AddElementEvent
	RemoveElementEvent
	MarkInUseEvent
	UnmarkUseEvent
)

func (t EventType) String() string {
	switch t {
	case AddNodeEvent:
		return "ADD_NODE"
	case RemoveNodeEvent:
		return "REMOVE_NODE"
	case VisitNodeEvent:
		return "VISIT_NODE"
	case AddElementEvent:
		return "ADD_ELEMENT"
	case RemoveElementEvent:
		return "REMOVE_ELEMENT"
	case MarkInUseEvent:
		return "MARK_IN_USE"
	case UnmarkUseEvent:
		return "UNMARK_USE"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event describes one transition of a node. Events are values: created at
// the mutation site, queued on the region, consumed once by the algorithm.
type Event struct {
	Fqn  fqn.Fqn
	Type EventType

	// ElementDelta is the element count for AddNodeEvent and the magnitude
	// of the change for Add/RemoveElementEvent (0 means 1).
	ElementDelta int
	// ResetElementCount replaces instead of adds ElementDelta on AddNodeEvent.
	ResetElementCount bool
	// InUseTimeout bounds a MarkInUseEvent; 0 marks until unmarked.
	InUseTimeout time.Duration
}

func (ev Event) String() string {
	return fmt.Sprintf("Event{%s %s delta=%d}", ev.Type, ev.Fqn, ev.ElementDelta)
}
