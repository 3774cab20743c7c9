// Package models defines the core data structures for LineBridge.
//
// It includes the participant record mirrored from the external roster, the
// roster patch payload, the message-log record, and the inbound webhook
// payload types shared across modules.
package models

import (
	"errors"
	"time"
)

// Group identifies one of the four experimental conditions. Each group is
// routed to its own conversational backend and intervention follow-up script.
type Group string

const (
	GroupA Group = "A"
	GroupB Group = "B"
	GroupC Group = "C"
	GroupD Group = "D"
)

// Validation constants for inbound input.
const (
	// VerificationCodeLength is the exact length of a participant code.
	VerificationCodeLength = 5
	// MaxMessageTextLength defines the maximum message text length recorded in the log.
	MaxMessageTextLength = 4096
)

// Error variables for better error handling and testability.
var (
	ErrEmptyUserID      = errors.New("user id cannot be empty")
	ErrInvalidUserID    = errors.New("user id is not a valid platform identifier")
	ErrEmptyReplyToken  = errors.New("reply token cannot be empty")
	ErrEmptyMessageText = errors.New("message text cannot be empty")
	ErrUnknownGroup     = errors.New("unknown experiment group")
)

// IsValidGroup checks if the given group is one of the four conditions.
func IsValidGroup(g Group) bool {
	switch g {
	case GroupA, GroupB, GroupC, GroupD:
		return true
	default:
		return false
	}
}

// Participant mirrors one roster record as returned by the roster service.
// The roster is the system of record; this struct is a read-mostly view.
type Participant struct {
	Code             string `json:"code"`
	Group            Group  `json:"group"`
	UserID           string `json:"user_id,omitempty"`
	Day              int    `json:"day"`
	D14Triggered     bool   `json:"d14_triggered"`
	FirstInteraction string `json:"first_interaction,omitempty"`
	LastInteraction  string `json:"last_interaction,omitempty"`
}

// RosterPatch is a fire-and-forget mutation sent to the roster service.
// The operation is distinguished by which fields are present:
//   - Code + UserID (+ FirstInteraction): bind a verified user to a record
//   - ClearUserID + UserID: unbind (RESET)
//   - UserID + LastInteraction (+ IsFirstToday): interaction log
//   - UserID + D14Trigger + Emotion + TriggerSentence: intervention log
type RosterPatch struct {
	Code             string `json:"code,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	ClearUserID      bool   `json:"clear_user_id,omitempty"`
	FirstInteraction string `json:"first_interaction,omitempty"`
	LastInteraction  string `json:"last_interaction,omitempty"`
	IsFirstToday     bool   `json:"is_first_today,omitempty"`
	D14Trigger       bool   `json:"d14_trigger,omitempty"`
	Emotion          string `json:"emotion,omitempty"`
	TriggerSentence  string `json:"trigger_sentence,omitempty"`
}

// MessageDirection indicates whether a logged message was received from or
// sent to a participant.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "in"
	DirectionOutbound MessageDirection = "out"
)

// Message is one entry in the durable message log.
type Message struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Direction MessageDirection `json:"direction"`
	Text      string           `json:"text"`
	Time      int64            `json:"time"`
}

// InboundMessage is the routed unit of work extracted from a webhook event.
type InboundMessage struct {
	UserID     string
	ReplyToken string
	Text       string
	Received   time.Time
}

// Validate checks that an inbound message carries everything routing needs.
func (m *InboundMessage) Validate() error {
	if m.UserID == "" {
		return ErrEmptyUserID
	}
	if m.ReplyToken == "" {
		return ErrEmptyReplyToken
	}
	if m.Text == "" {
		return ErrEmptyMessageText
	}
	return nil
}

// Webhook payload types follow the messaging platform's event schema. Only
// the fields the relay consumes are modeled.

// WebhookRequest is the top-level inbound webhook payload.
type WebhookRequest struct {
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent is a single platform event. Only "message" events with a
// "text" message are processed; everything else is acknowledged and ignored.
type WebhookEvent struct {
	Type       string         `json:"type"`
	ReplyToken string         `json:"replyToken"`
	Source     WebhookSource  `json:"source"`
	Message    WebhookMessage `json:"message"`
}

// WebhookSource identifies the sender of an event.
type WebhookSource struct {
	UserID string `json:"userId"`
}

// WebhookMessage is the message body of a "message" event.
type WebhookMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// IsTextMessage reports whether the event is a routable text message.
func (e *WebhookEvent) IsTextMessage() bool {
	return e.Type == "message" && e.Message.Type == "text"
}

// StatusResponse is the JSON envelope returned to the messaging platform's
// webhook delivery. The platform only checks the HTTP status; the body keeps
// the historical shape for log correlation.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Status constructs a plain status envelope.
func Status(status string) StatusResponse {
	return StatusResponse{Status: status}
}

// StatusError constructs an error envelope with a human-readable message.
func StatusError(message string) StatusResponse {
	return StatusResponse{Status: "error", Message: message}
}
