package depth

// EventKind discriminates book events returned by mutating operations.
type EventKind string

const (
	// EventQuoteOutOfDepth reports a quote evicted because the side grew
	// past the configured maximum depth.
	EventQuoteOutOfDepth EventKind = "QUOTE_OUT_OF_DEPTH"
	// EventDepthChanged reports that the book depth changed.
	EventDepthChanged EventKind = "DEPTH_CHANGED"
)

// Event is a discrete change notification. Mutating operations return the
// events they caused instead of firing callbacks mid-mutation, so the
// caller decides whether to handle them synchronously or defer them.
type Event struct {
	Kind  EventKind
	Quote *Quote // evicted quote for EventQuoteOutOfDepth
	Depth int    // new depth for EventDepthChanged
}

func evicted(q *Quote) Event {
	return Event{Kind: EventQuoteOutOfDepth, Quote: q}
}

func depthChanged(depth int) Event {
	return Event{Kind: EventDepthChanged, Depth: depth}
}
