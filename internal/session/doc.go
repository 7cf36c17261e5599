// Package session keeps a single in-process view of the current
// authentication session.
//
// A Synchronizer fills its cell from two sources: one initial fetch issued
// at Start, and the provider's open-ended stream of change notifications.
// Both go through one serial queue and are applied in arrival order, with
// one exception: an initial fetch that resolves after a notification has
// already been applied is discarded, so a slow restore never overwrites a
// newer sign-in or sign-out. A failed initial fetch resolves the cell to
// signed out.
//
// Readers call Current, which never blocks. Observers registered with
// Subscribe receive the current value first and then every change.
package session
