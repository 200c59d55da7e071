package models

import (
	"encoding/json"
	"fmt"
)

// SSE event types carried in the "type" field of each data payload.
const (
	SSEEventDelta  = "delta"
	SSEEventStatus = "status"
	SSEEventDone   = "done"
	SSEEventError  = "error"
)

// SSETerminator closes every stream after the terminal event.
const SSETerminator = "data: [DONE]\n\n"

// DeltaEvent carries one incremental fragment of the answer.
type DeltaEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// StatusEvent carries a short informational message (tool activity).
type StatusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DoneEvent is the terminal event of a successful turn.
type DoneEvent struct {
	Type              string             `json:"type"`
	Usage             *TurnUsage         `json:"usage,omitempty"`
	InteractionStatus *InteractionStatus `json:"interactionStatus,omitempty"`
	CreditConsumption *CreditDebit       `json:"creditConsumption,omitempty"`
	NormativeAnnex    []AnnexEntry       `json:"normativeAnnex,omitempty"`
	URLValidation     *URLValidation     `json:"urlValidation,omitempty"`
	FromCache         bool               `json:"fromCache,omitempty"`
}

// ErrorEvent is the terminal event of a failed turn.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// FormatSSE serializes a payload as one SSE data line:
//
//	data: {"type":"delta","content":"..."}
func FormatSSE(data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal SSE event: %w", err)
	}
	return fmt.Sprintf("data: %s\n\n", jsonData), nil
}

// Helper constructors for the protocol events.

func NewDeltaEvent(content string) (string, error) {
	return FormatSSE(DeltaEvent{Type: SSEEventDelta, Content: content})
}

func NewStatusEvent(message string) (string, error) {
	return FormatSSE(StatusEvent{Type: SSEEventStatus, Message: message})
}

func NewDoneEvent(ev DoneEvent) (string, error) {
	ev.Type = SSEEventDone
	return FormatSSE(ev)
}

func NewErrorEvent(message, code string) (string, error) {
	return FormatSSE(ErrorEvent{Type: SSEEventError, Message: message, Code: code})
}
