// Package feed is the presentation surface of the base station.
//
// # Endpoints
//
//	GET /health        200 while the process is alive
//	GET /health/ready  200 once at least one team agent is connected
//	GET /api/world     latest fused estimate as JSON
//	GET /api/agents    team and opponent snapshots as JSON
//	GET /ws            live websocket
//
// # Websocket
//
// The first frame is a hello carrying the current world and agents. After
// that every station event (world_updated, agent_status, refbox_status,
// refbox_message, log) is forwarded as it happens. A display that falls
// behind misses events; the next world_updated frame is complete on its own.
//
// Displays may also send commands:
//
//	{"id": "1", "cmd": "set_params", "agent_id": 2, "params": {"max_speed": 2.5}}
//
// Each command is answered with {"type": "result", ...} or
// {"type": "error", ...} carrying the same id. A bad command never closes
// the socket. Replies to commands with an id are kept for a few minutes, and
// resending the same id returns the kept reply without running the command
// again.
package feed
