// ABOUTME: Event types published by the station to the presentation layer
// ABOUTME: One Event per status change, referee message, world update or operator log line

package events

import (
	"time"

	"github.com/teamera/basestation/internal/fusion"
)

// Type identifies what an Event reports.
type Type string

const (
	TypeWorldUpdated  Type = "world_updated"
	TypeAgentStatus   Type = "agent_status"
	TypeRefBoxStatus  Type = "refbox_status"
	TypeRefBoxMessage Type = "refbox_message"
	TypeLog           Type = "log"
)

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	Type      Type             `json:"type"`
	Time      time.Time        `json:"time"`
	AgentID   int              `json:"agent_id,omitempty"`
	Connected *bool            `json:"connected,omitempty"`
	Text      string           `json:"text,omitempty"`
	World     *fusion.Estimate `json:"world,omitempty"`
}

// AgentStatus reports an agent channel opening or closing.
func AgentStatus(agentID int, connected bool) Event {
	return Event{Type: TypeAgentStatus, Time: time.Now(), AgentID: agentID, Connected: &connected}
}

// RefBoxStatus reports the referee-box connection opening or closing.
func RefBoxStatus(connected bool) Event {
	return Event{Type: TypeRefBoxStatus, Time: time.Now(), Connected: &connected}
}

// RefBoxMessage carries one raw referee-box line.
func RefBoxMessage(text string) Event {
	return Event{Type: TypeRefBoxMessage, Time: time.Now(), Text: text}
}

// WorldUpdated carries a freshly fused estimate.
func WorldUpdated(est *fusion.Estimate) Event {
	return Event{Type: TypeWorldUpdated, Time: est.Time, World: est}
}

// Log carries an operator-visible log line.
func Log(text string) Event {
	return Event{Type: TypeLog, Time: time.Now(), Text: text}
}
