// Package events fans station notifications out to any number of listeners.
//
// The coordinator publishes an Event whenever an agent channel opens or
// closes, the referee box connects, disconnects or sends a line, and once per
// tick with the fused world estimate. The live feed and the session recorder
// each hold a subscription.
//
// Publish never blocks. A subscriber whose buffer is full misses events; the
// next world_updated event carries the complete picture again, so nothing is
// lost for good.
package events
