// ABOUTME: Operator commands accepted on the feed websocket
// ABOUTME: Frames are schema-checked, then mapped onto station operations

package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/teamera/basestation/internal/agent"
	"github.com/teamera/basestation/internal/fusion"
)

// Command names.
const (
	CmdConnectAll     = "connect_all"
	CmdDisconnectAll  = "disconnect_all"
	CmdRefBoxConnect  = "refbox_connect"
	CmdRefBoxStop     = "refbox_stop"
	CmdSetParams      = "set_params"
	CmdSendParams     = "send_params"
	CmdSendParamsAll  = "send_params_all"
	CmdSaveParams     = "save_params"
	CmdLoadParams     = "load_params"
	CmdMove           = "move"
	CmdStartRecording = "start_recording"
	CmdStopRecording  = "stop_recording"
)

const commandSchemaURL = "basestation://feed-command.schema.json"

const commandSchemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "feed command",
  "type": "object",
  "required": ["cmd"],
  "properties": {
    "id": {"type": "string"},
    "cmd": {"enum": [
      "connect_all", "disconnect_all", "refbox_connect", "refbox_stop",
      "set_params", "send_params", "send_params_all", "save_params",
      "load_params", "move", "start_recording", "stop_recording"
    ]},
    "agent_id": {"type": "integer"},
    "params": {
      "type": "object",
      "propertyNames": {"pattern": "^\\S+$"},
      "additionalProperties": {"type": ["string", "number"]}
    },
    "direction": {"type": "string"},
    "addr": {"type": "string"},
    "path": {"type": "string"}
  },
  "allOf": [
    {
      "if": {"properties": {"cmd": {"enum": ["set_params", "send_params", "save_params", "load_params", "move"]}}},
      "then": {"required": ["agent_id"]}
    },
    {
      "if": {"properties": {"cmd": {"enum": ["set_params", "send_params_all"]}}},
      "then": {"required": ["params"]}
    },
    {
      "if": {"properties": {"cmd": {"const": "move"}}},
      "then": {"required": ["direction"]}
    }
  ]
}`

var commandSchema = jsonschema.MustCompileString(commandSchemaURL, commandSchemaSource)

// Command is one operator request.
type Command struct {
	ID        string         `json:"id,omitempty"`
	Cmd       string         `json:"cmd"`
	AgentID   int            `json:"agent_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Direction string         `json:"direction,omitempty"`
	Addr      string         `json:"addr,omitempty"`
	Path      string         `json:"path,omitempty"`
}

// Reply answers one Command.
type Reply struct {
	Type  string `json:"type"` // "result" or "error"
	ID    string `json:"id,omitempty"`
	Cmd   string `json:"cmd,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Hello is the first frame on every websocket.
type Hello struct {
	Type   string           `json:"type"`
	World  *fusion.Estimate `json:"world"`
	Agents []agent.Snapshot `json:"agents"`
}

// ParseCommand validates and decodes one frame.
func ParseCommand(data []byte) (Command, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Command{}, fmt.Errorf("parsing command: %w", err)
	}
	if err := commandSchema.Validate(doc); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}

	var cmd Command
	dec = json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("decoding command: %w", err)
	}
	return cmd, nil
}

// rawParams turns the params object into operator text. Numbers keep their
// literal spelling so params.Parse sees exactly what was sent.
func (c Command) rawParams() map[string]string {
	out := make(map[string]string, len(c.Params))
	for name, v := range c.Params {
		switch v := v.(type) {
		case string:
			out[name] = v
		case json.Number:
			out[name] = v.String()
		default:
			out[name] = fmt.Sprint(v)
		}
	}
	return out
}

// handleFrame parses and runs one frame. A retried frame with a known id gets
// the stored reply and is not run again.
func (s *Server) handleFrame(ctx context.Context, msg []byte) Reply {
	cmd, err := ParseCommand(msg)
	if err != nil {
		return Reply{Type: "error", Error: err.Error()}
	}
	if cmd.ID == "" {
		return s.execute(ctx, cmd)
	}

	reply, shared, err := s.replies.Do(ctx, cmd.ID, func() Reply {
		return s.execute(ctx, cmd)
	})
	if err != nil {
		return Reply{Type: "error", ID: cmd.ID, Cmd: cmd.Cmd, Error: err.Error()}
	}
	if shared {
		s.logger.Debug("replaying stored reply", "id", cmd.ID, "cmd", cmd.Cmd)
	}
	return reply
}

// execute runs cmd against the station and builds the reply.
func (s *Server) execute(ctx context.Context, cmd Command) Reply {
	data, err := s.dispatch(ctx, cmd)
	if err != nil {
		s.logger.Debug("command failed", "cmd", cmd.Cmd, "agent_id", cmd.AgentID, "error", err)
		return Reply{Type: "error", ID: cmd.ID, Cmd: cmd.Cmd, Error: err.Error()}
	}
	return Reply{Type: "result", ID: cmd.ID, Cmd: cmd.Cmd, Data: data}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Cmd {
	case CmdConnectAll:
		return connectOutcomes(s.station.ConnectAll(ctx)), nil
	case CmdDisconnectAll:
		s.station.DisconnectAll()
		return nil, nil
	case CmdRefBoxConnect:
		return map[string]bool{"started": s.station.StartRefBox(cmd.Addr)}, nil
	case CmdRefBoxStop:
		s.station.StopRefBox()
		return nil, nil
	case CmdSetParams:
		return nil, s.station.SetParameters(cmd.AgentID, cmd.rawParams())
	case CmdSendParams:
		return nil, s.station.SendParameters(cmd.AgentID)
	case CmdSendParamsAll:
		return nil, s.station.SendParametersToAll(cmd.rawParams())
	case CmdSaveParams:
		path, err := s.station.SaveParameters(cmd.AgentID, cmd.Path)
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path}, nil
	case CmdLoadParams:
		ignored, err := s.station.LoadParameters(cmd.AgentID, cmd.Path)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"ignored": ignored}, nil
	case CmdMove:
		return nil, s.station.Move(cmd.AgentID, cmd.Direction)
	case CmdStartRecording:
		path, err := s.station.StartRecording()
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path}, nil
	case CmdStopRecording:
		path, err := s.station.StopRecording()
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.Cmd)
	}
}

type connectOutcome struct {
	AgentID  int    `json:"agent_id"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Inactive bool   `json:"inactive,omitempty"`
	Error    string `json:"error,omitempty"`
}

func connectOutcomes(results []agent.ConnectResult) []connectOutcome {
	out := make([]connectOutcome, 0, len(results))
	for _, res := range results {
		o := connectOutcome{
			AgentID:  res.AgentID,
			Name:     res.Name,
			State:    res.State.String(),
			Inactive: res.Inactive,
		}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		out = append(out, o)
	}
	return out
}
