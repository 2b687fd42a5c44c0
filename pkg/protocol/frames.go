// Package protocol defines the wire format spoken between discordlite and the
// chat gateway. Frames are JSON objects sent as WebSocket text messages.
package protocol

import "encoding/json"

// Protocol version. Clients send this in the connect handshake.
const ProtocolVersion = 1

// Frame types
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// RequestFrame is sent by the client to invoke an RPC method.
type RequestFrame struct {
	Type   string          `json:"type"`   // always "req"
	ID     string          `json:"id"`     // unique request ID (client-generated)
	Method string          `json:"method"` // RPC method name
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame is sent by the gateway in response to a request.
type ResponseFrame struct {
	Type    string          `json:"type"`              // always "res"
	ID      string          `json:"id"`                // matches request ID
	OK      bool            `json:"ok"`                // true if success
	Payload json.RawMessage `json:"payload,omitempty"` // response data (when ok=true)
	Error   *ErrorShape     `json:"error,omitempty"`   // error info (when ok=false)
}

// ErrorShape describes a protocol error.
type ErrorShape struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Retryable    bool   `json:"retryable,omitempty"`
	RetryAfterMs int    `json:"retryAfterMs,omitempty"`
}

// EventFrame is pushed from the gateway without a preceding request.
// SubscriptionID routes the event to the subscription that asked for it.
type EventFrame struct {
	Type           string          `json:"type"`                     // always "event"
	Event          string          `json:"event"`                    // event name
	SubscriptionID string          `json:"subscriptionId,omitempty"` // owning subscription
	Payload        json.RawMessage `json:"payload,omitempty"`        // event data
	Seq            int64           `json:"seq,omitempty"`            // ordering sequence number
}

// NewRequest creates a request frame. Params are JSON-encoded; a nil params
// value produces a frame without params.
func NewRequest(id, method string, params any) (*RequestFrame, error) {
	frame := &RequestFrame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		frame.Params = raw
	}
	return frame, nil
}

// NewOKResponse creates a success response frame.
func NewOKResponse(id string, payload any) *ResponseFrame {
	raw, _ := json.Marshal(payload)
	return &ResponseFrame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      true,
		Payload: raw,
	}
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, code, message string) *ResponseFrame {
	return &ResponseFrame{
		Type: FrameTypeResponse,
		ID:   id,
		OK:   false,
		Error: &ErrorShape{
			Code:    code,
			Message: message,
		},
	}
}

// NewEvent creates an event frame for a subscription.
func NewEvent(subscriptionID, event string, payload any) *EventFrame {
	raw, _ := json.Marshal(payload)
	return &EventFrame{
		Type:           FrameTypeEvent,
		Event:          event,
		SubscriptionID: subscriptionID,
		Payload:        raw,
	}
}

// ParseFrameType extracts the frame type from raw JSON bytes.
func ParseFrameType(data []byte) (string, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return raw.Type, nil
}
