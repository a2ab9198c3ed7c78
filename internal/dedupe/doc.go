// Package dedupe keeps recently produced values by key so repeated requests
// can be answered from memory.
//
// # Expiry
//
// Entries live for a fixed TTL and the oldest entry is evicted when the
// cache is full. A background sweeper removes expired entries; Close stops
// it.
package dedupe
