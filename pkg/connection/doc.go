// Package connection manages the link lifecycle to the processor.
//
// The Manager tracks a small state machine (DISCONNECTED, CONNECTING,
// CONNECTED, RECONNECTING, CLOSED) around a caller-supplied ConnectFunc
// and retries lost links with exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Continue at 30s until the link comes back
//
// Jitter of up to 25% of the base delay is added to each wait. Backoff
// resets to the initial delay only after the link has stayed up for
// StableConnectionPeriod; a device that accepts the TCP connection and
// immediately drops it keeps climbing the schedule instead of hammering
// it once per second.
package connection
