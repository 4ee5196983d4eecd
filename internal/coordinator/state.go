package coordinator

// DocState is the per-document indexing state.
type DocState int

const (
	// StateUnknown means the document has never been seen.
	StateUnknown DocState = iota
	// StateUpToDate means the cached vector matches the current content hash.
	StateUpToDate
	// StateStale means regeneration failed; the previous record, if any, is
	// still served and the document is retried on the next pass.
	StateStale
	// StateRegenerating means a producer call for the document is in flight.
	StateRegenerating
)

// String returns a string representation of the state.
func (s DocState) String() string {
	switch s {
	case StateUpToDate:
		return "up_to_date"
	case StateStale:
		return "stale"
	case StateRegenerating:
		return "regenerating"
	default:
		return "unknown"
	}
}
