// Package stride implements a workflow progression engine with optimistic
// concurrency for linear multi-step submissions. The client-side core keeps a
// locally cached view of each submission synchronized with an authoritative
// persistence service, applying mutations optimistically and rolling them
// back when the service rejects them.
package stride

const (
	// Name identifies this service in logs and user agents
	Name = "stride"

	// Version is the current release of the engine
	Version = "0.3.1"
)
