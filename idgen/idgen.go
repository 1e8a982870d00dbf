// Package idgen provides pluggable ID generation for resmirror.
//
// Store constructors accept a Generator, making the ID strategy a
// startup-time decision rather than a compile-time one. Durable post rows
// need identities that stay stable across processes and queries (the
// reply-graph visited set keys on them), so the default is UUIDv7.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings:
// time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Useful for type-scoped identifiers (e.g. "post_", "cp_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the process-wide default strategy.
var Default Generator = UUIDv7()

// New produces an ID with the Default strategy.
func New() string { return Default() }
