// Package metrics writes server status samples to InfluxDB.
//
// When enabled, a background sampler records the running flag, player
// count, and uptime on a fixed interval, and lifecycle transitions are
// written as annotated points. Writes are batched and non-blocking; a
// failed write never affects server supervision.
package metrics
