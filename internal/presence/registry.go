// Package presence maps user identities to their live connection and tracks
// the online set.
package presence

import "context"

// Registry records at most one connection per user; the last Bind wins.
type Registry interface {
	// Bind records userID on connID and marks the user online. A previous
	// connection of the same user loses its reverse mapping.
	Bind(ctx context.Context, userID, connID string) error
	// ConnectionOf returns the user's connection id, if any.
	ConnectionOf(ctx context.Context, userID string) (string, bool, error)
	// Unbind removes the mapping only if it still points at connID, so a stale
	// unbind cannot undo a newer bind. It reports whether anything was removed.
	Unbind(ctx context.Context, userID, connID string) (bool, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
}
