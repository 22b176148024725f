package datatypes

import "encoding/json"

// Message is a role-tagged chat message shared between the gateway and the
// LLM backends.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ControlMessage is the structured shape a raw inbound frame is tested
// against before it is treated as query text.
type ControlMessage struct {
	Type string `json:"type"`
}

const ControlVerificationComplete = "verification_complete"

// ParseControlMessage reports whether raw is a structured control message.
// Any JSON parse failure or non-matching shape yields ok=false; the caller
// must then treat raw as an ordinary query.
func ParseControlMessage(raw []byte) (ControlMessage, bool) {
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ControlMessage{}, false
	}
	if msg.Type == "" {
		return ControlMessage{}, false
	}
	return msg, true
}

// Outbound frame types for the voice socket.

type SessionFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type VerifiedFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type AuthRequiredFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Intent  string `json:"intent"`
}

type TextFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}
