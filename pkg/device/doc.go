// Package device ties the protocol stack together into a usable client.
//
// A Session owns one logical link to the processor: the transport, the
// read pump, the command correlator, the state cache, and the
// reconnection supervisor. Control surfaces are exposed as facades
// (Power, Volume, Source, AudioMode) hanging off the Session; each
// facade operation builds the wire command, submits it through the
// single-flight dispatcher, and maps the reply into typed results.
//
// Sessions reconnect automatically. Every physical connection
// renegotiates the feedback level and invalidates the cached source and
// audio mode enumerations, since indices are only stable within one
// connection.
package device
