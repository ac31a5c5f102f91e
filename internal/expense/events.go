package expense

import "iexpense/internal/core"

// EventKind names the mutation that produced an Event.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
)

// Event describes one completed mutation.
type Event struct {
	Kind EventKind
	// Records holds the records added or removed by the mutation.
	Records []core.ExpenseRecord
	// Count is the sequence length after the mutation.
	Count int
	// PersistErr is non-nil when the write to storage failed. The in-memory
	// sequence already reflects the mutation.
	PersistErr error
}

// Observer is called synchronously after every mutation.
type Observer func(Event)
