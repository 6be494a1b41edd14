// Package monitor provides the raw frame tap for diagnostics.
//
// Every outbound command and inbound frame, plus connection state changes
// and link errors, can be observed as structured events. Applications pass
// a Logger implementation to the device session; the session stamps each
// event with the connection's UUID so captures from reconnecting sessions
// remain attributable.
//
// For interactive use, SlogAdapter prints events through log/slog. For
// offline analysis, FileLogger writes CBOR-encoded events to a capture
// file that Reader can replay. MultiLogger fans out to both.
package monitor
