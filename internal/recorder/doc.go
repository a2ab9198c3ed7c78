// Package recorder saves station sessions to disk.
//
// While a session is open every event published by the station (world
// updates, agent and referee-box status changes, referee messages, operator
// log lines) is written as one JSON line into a zstd-compressed file:
//
//	<dir>/session-<uuid>.jsonl.zst
//
// Stop flushes and closes the file. ReadSession reads it back.
//
// The recorder holds an ordinary broadcaster subscription, so a slow disk
// drops events for the recording only and never delays the tick.
package recorder
