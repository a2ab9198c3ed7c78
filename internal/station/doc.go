// Package station is the base station coordinator.
//
// # Overview
//
// A Station owns the agent registry, the referee-box client, the event
// broadcaster and the latest fused world estimate. It is built from a
// config.Config and driven by Run:
//
//	st, err := station.New(cfg, logger)
//	...
//	go st.Run(ctx)          // fusion tick until ctx is done
//	st.ConnectAll(ctx)
//	st.StartRefBox("")      // configured address
//	...
//	st.Shutdown(shutdownCtx)
//
// # Tick
//
// Every station.tick_period the team's observations are fused into a new
// estimate. The estimate is stored in an atomic pointer (World returns the
// latest, last value wins) and published as a world_updated event. Neither
// step waits on a consumer.
//
// # Operator Operations
//
// ConnectAll, DisconnectAll, StartRefBox and StopRefBox map one to one onto
// the registry and the referee-box client. SetParameters, SendParameters,
// SendParametersToAll, SaveParameters and LoadParameters manage per-agent
// tunables; Move records a jog request. StartRecording and StopRecording
// open and close a session file. Each operation also publishes a log event
// so every connected operator sees what happened.
package station
