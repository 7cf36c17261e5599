// Package identity implements the identity provider consumed by the session
// synchronizer, backed by a GoTrue-compatible auth endpoint and a local
// credential store.
package identity
