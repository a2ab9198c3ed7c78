// Package agent manages the robots tracked by the base station.
//
// # Overview
//
// Every robot, on our team or the opposing one, is an Agent. Team agents
// get a Channel, a network link used to send commands and receive locally
// sensed telemetry. Opponents are tracked for display only.
//
// # Agent
//
// An Agent carries static identity (ID, Name, Color, Role), an optional
// endpoint (Address, Port, Network) and mutable state:
//
//   - Observation: position, orientation, ball and obstacles
//   - Parameters: tunable named values (see package params)
//
// Mutable fields are only touched with the agent's own mutex held. Readers
// use Observe, Observation or Snapshot to get a consistent copy.
//
// # Channel
//
// A Channel owns at most one socket and one receive loop:
//
//	ch := agent.NewChannel(a, agent.ChannelOptions{OnStatus: onStatus})
//	err := ch.Connect(ctx)   // no-op for agents without an address
//	err = ch.Send("SET max_speed 2.5")
//	ch.Disconnect()          // closes the socket, joins the loop
//
// Send on a disconnected channel returns ErrNotConnected. The receive loop
// hands every payload to a Decoder while the agent's lock is held. A
// transport error ends the loop and marks the agent disconnected; its last
// observation stays visible.
//
// # Registry
//
// The Registry holds the ordered team and opponent collections:
//
//	reg, err := agent.NewRegistry(team, opponents, opts, logger)
//	results := reg.ConnectAll(ctx)
//	reg.DisconnectAll()
//
// ConnectAll dials every team agent concurrently. One unreachable robot
// never keeps the others from connecting; each ConnectResult reports its own
// outcome.
//
// # Thread Safety
//
// There is no global lock. Each Agent guards its observation with its own
// mutex and each Channel guards its socket with another.
package agent
