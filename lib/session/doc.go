// Package session implements the fixed-capacity session table and the handle
// codec used to address its slots.
//
// A Table is an arena of slots indexed by integer. Each in-use slot records the
// identity of the caller that created it and owns one cipher.State. Callers
// never see slot indexes directly: they receive a Handle that packs the owner
// identity and slot index, and every use of a handle is re-validated against
// the slot's recorded owner.
//
// The table is not safe for concurrent use. It is owned by the single
// goroutine that runs the service loop.
package session
