// Package chat holds the types, validation rules, and line formats shared by
// the registries, the hub, and the session layer.
package chat

// Client is the view of a connected session exposed to the registries and
// the hub. Implementations are pointer-backed so interface equality
// identifies a specific session, which the registries rely on for
// identity-guarded removal.
type Client interface {
	// ID returns the session's unique identifier, used for logging.
	ID() string

	// Username returns the authenticated username.
	Username() string

	// Deliver enqueues one line on the session's outbound queue and reports
	// whether it was accepted. It must never block: a full queue returns
	// false and the line is dropped for that session only.
	Deliver(line string) bool
}
