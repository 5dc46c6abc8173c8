// Package notifications pushes run events to an ntfy topic.
//
// Delivery is best effort. With no topic configured NewService returns a
// notifier that does nothing, so callers never need to check.
package notifications
