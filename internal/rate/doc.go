// Package rate provides the Redis fixed-window counters that the test backend
// uses to throttle login and refresh, mirroring the production backend's
// "10 per minute" login limit.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - rl:login:   per client address
//   - rl:refresh: per subject
//
// # What this package must NOT do
//
//   - Be imported outside the goSession module.
//   - Be used by the client itself; throttling is a server concern.
package rate
