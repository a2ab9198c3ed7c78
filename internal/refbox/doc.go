// Package refbox listens to the referee box.
//
// # Overview
//
// The referee box is an external process that sends game-state commands as
// newline-delimited UTF-8 text over one TCP connection. The base station
// never writes to it.
//
// # Client
//
//	c := refbox.New(refbox.Options{
//	    OnStatus:  func(connected bool) { ... },
//	    OnMessage: func(text string) { ... },
//	    Handler:   myHandler,
//	})
//	c.Start(refbox.DefaultAddr) // returns at once
//	...
//	c.Stop()
//
// Start never blocks the caller: the dial and the read loop run on their own
// goroutine. A referee box that is not running simply ends up Closed with a
// status callback, it never stalls the station.
//
// # States
//
//	Idle -> Connecting -> Connected -> Closed
//	                  \______________/
//
// End of stream, read errors and dial failures all end in Closed; there is
// no automatic reconnect. Start may be called again from Closed.
//
// # Dispatch
//
// Each non-empty, trimmed line is appended to the message log, passed to
// OnMessage and then to the Handler. LogHandler, the default, only logs.
package refbox
