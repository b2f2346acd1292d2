// Package realtime serves the websocket tutor channel: it accepts connections,
// routes inbound events and emits tutor responses and typing state.
package realtime

import "encoding/json"

// Inbound event names.
const (
	EventUserMessage  = "userMessage"
	EventTutorMessage = "ai_tutor_message"
	EventUserTyping   = "user_typing"
	EventRequestHelp  = "request_help"
	EventPing         = "ping"
)

// Outbound event names.
const (
	EventTutorResponse = "ai_tutor_response"
	EventTyping        = "ai_typing"
	EventPong          = "pong"
	EventBroadcast     = "broadcast_message"
)

// Envelope is one websocket frame in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// ChatMessage is the payload of userMessage / ai_tutor_message.
type ChatMessage struct {
	Text        string  `json:"text"`
	UserID      string  `json:"userId,omitempty"`
	GoalID      *string `json:"goalId,omitempty"`
	CurrentWeek *string `json:"currentWeek,omitempty"`
	MessageType string  `json:"messageType,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	SessionID   string  `json:"sessionId"`
}

// TypingSignal is the payload of user_typing.
type TypingSignal struct {
	IsTyping  bool   `json:"isTyping"`
	SessionID string `json:"sessionId"`
}

// HelpRequest is the payload of request_help.
type HelpRequest struct {
	Topic     string `json:"topic"`
	HelpType  string `json:"helpType"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp,omitempty"`
}
