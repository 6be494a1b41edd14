// Package dispatch correlates outbound commands with inbound frames.
//
// The wire protocol has no request identifiers, so only one command may be
// outstanding at a time. The Correlator owns that single in-flight slot:
// Submit serializes callers FIFO, writes the encoded command, and waits
// until the command's matcher accepts a reply, the deadline expires, or
// the connection drops. Status frames that do not belong to the pending
// reply are unsolicited updates and are applied to the state cache without
// consuming the slot; echo frames are diagnostic only.
//
// The Correlator is fed from exactly one read pump goroutine via
// HandleFrame, in frame arrival order. State cache updates happen on that
// goroutine, so the cached value of an observable is always the most
// recently received one.
package dispatch
