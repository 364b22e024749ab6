package ws

import (
	"encoding/json"
	"time"

	"github.com/relaymesh/coordinator/internal/domain/event"
)

// RequestFrame is the envelope for every inbound WebSocket message:
// {"type": <string>, "id": <string>, ...params}.
type RequestFrame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"-"`
}

// rawRequestFrame captures the full object so Params can hold whatever
// fields accompany type/id without a second parse pass.
type rawRequestFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ParseRequest decodes a raw WebSocket text frame into a RequestFrame,
// keeping the original bytes available for per-type param decoding.
func ParseRequest(raw []byte) (RequestFrame, error) {
	var head rawRequestFrame
	if err := json.Unmarshal(raw, &head); err != nil {
		return RequestFrame{}, err
	}
	return RequestFrame{Type: head.Type, ID: head.ID, Params: raw}, nil
}

// OKResponse builds a successful response frame.
func OKResponse(id string, result any) []byte {
	body := map[string]any{"type": "ok", "id": id}
	if result != nil {
		body["result"] = result
	}
	data, _ := json.Marshal(body)
	return data
}

// ErrResponse builds an error response frame.
func ErrResponse(id, code, message string) []byte {
	body := map[string]any{
		"type": "err",
		"id":   id,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	data, _ := json.Marshal(body)
	return data
}

// EventFrame builds an unsolicited event frame.
func EventFrame(ev event.Event) []byte {
	body := map[string]any{
		"type":    "event",
		"seq":     ev.Seq,
		"kind":    string(ev.Kind),
		"ts":      ev.TS.Format(time.RFC3339Nano),
		"payload": json.RawMessage(ev.Payload),
	}
	data, _ := json.Marshal(body)
	return data
}

// WelcomeFrame builds the frame sent immediately after a successful
// connection accept.
func WelcomeFrame(seq int64) []byte {
	body := map[string]any{"type": "welcome", "seq": seq}
	data, _ := json.Marshal(body)
	return data
}

// EventGapFrame marks a dropped event due to outbound backpressure.
func EventGapFrame(lastDelivered int64) []byte {
	body := map[string]any{"type": "event_gap", "last_delivered_seq": lastDelivered}
	data, _ := json.Marshal(body)
	return data
}
