// Package params holds the tunable robot parameters.
//
// # Parameter Sets
//
// A Set is a flat mapping of parameter names to float64 values. Defaults()
// returns the reference robot's values (max_speed, rotation_speed,
// kick_power, acceleration, deceleration, battery_level, vision_range,
// ball_detection_threshold, obstacle_detection_threshold,
// communication_range).
//
// # Operator Input
//
// Parse validates raw text input. A single bad value rejects the whole
// input with ErrInvalidParameter, so callers can leave their state untouched
// and show the error to the operator.
//
// # Wire Format
//
// Each parameter is sent to a robot as one text command:
//
//	SET max_speed 2.5
//
// # Files
//
// Parameter files are one JSON object of named numbers, indented with four
// spaces:
//
//	{
//	    "max_speed": 2,
//	    "kick_power": 0.8
//	}
//
// Load and Decode validate against an embedded JSON Schema before any value
// is used.
package params
