// Package messaging carries the authorization result from the popup context
// back to the widget window. The transport is abstract: a Channel delivers
// typed messages with a sender origin, and the listener enforces exact-origin
// matching before a message is trusted. Exactly one terminal message is
// posted per authorization attempt.
package messaging

import (
	"encoding/json"
	"fmt"
)

// Type discriminates terminal authorization messages.
type Type string

const (
	// TypeSuccess carries the token set obtained by the popup's code exchange.
	TypeSuccess Type = "oauth_success"

	// TypeError carries the reason an authorization attempt failed.
	TypeError Type = "oauth_error"
)

// Message is one cross-window authorization message. A popup posts exactly
// one of these per attempt, then closes.
type Message struct {
	Type Type `json:"type"`

	// AttemptID ties the message to the Connect() attempt that opened the
	// popup, so a stale popup from a superseded attempt is ignored.
	AttemptID string `json:"attempt_id,omitempty"`

	// Success payload.
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`

	// Error payload.
	ErrorCode        string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewSuccessMessage builds the terminal success message for an attempt.
func NewSuccessMessage(attemptID, accessToken, tokenType, refreshToken string, expiresIn int64) *Message {
	return &Message{
		Type:         TypeSuccess,
		AttemptID:    attemptID,
		AccessToken:  accessToken,
		TokenType:    tokenType,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}
}

// NewErrorMessage builds the terminal error message for an attempt.
func NewErrorMessage(attemptID, code, description string) *Message {
	return &Message{
		Type:             TypeError,
		AttemptID:        attemptID,
		ErrorCode:        code,
		ErrorDescription: description,
	}
}

// Validate checks the message is a well-formed terminal message.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("nil message")
	}
	switch m.Type {
	case TypeSuccess:
		if m.AccessToken == "" {
			return fmt.Errorf("success message missing access token")
		}
	case TypeError:
		if m.ErrorCode == "" {
			return fmt.Errorf("error message missing error code")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// Marshal encodes the message for the wire.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes a wire message. Malformed payloads are rejected as a
// unit; the listener drops them without inspecting partial fields.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed message payload: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
