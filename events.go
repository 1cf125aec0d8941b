package shlink

import "time"

// AccessEvent is the optional, ephemeral record delivered to an
// operator-supplied callback after a successful manifest access.
// Nothing about it is persisted by this package; an operator who wants
// an audit trail owns that themselves.
type AccessEvent struct {
	ShlID       string
	AccessCount int
	Timestamp   time.Time
}

// EventSink receives AccessEvents. It is invoked on a best-effort,
// fire-and-forget goroutine; a panicking or slow sink never affects the
// manifest response that triggered it.
type EventSink func(AccessEvent)
