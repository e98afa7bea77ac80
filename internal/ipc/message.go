package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Request is one IPC call: a correlation id, a dispatch type (see
// internal/worker's handler switch), and an opaque JSON payload.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response echoes a Request's id with either a success payload or an error
// string; never both.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewRequest builds a Request with a freshly generated correlation id and
// params marshaled into Payload.
func NewRequest(typ string, params any) (Request, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("ipc: marshal request payload: %w", err)
		}
		raw = b
	}
	return Request{ID: uuid.NewString(), Type: typ, Payload: raw}, nil
}

// OK builds a success Response for id with data marshaled into Data.
func OK(id string, data any) Response {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	return Response{ID: id, Success: true, Data: raw}
}

// Fail builds a failure Response for id.
func Fail(id string, err error) Response {
	return Response{ID: id, Success: false, Error: err.Error()}
}

// WriteRequest encodes and frames req onto w.
func WriteRequest(w writerFramer, req Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("ipc: marshal request: %w", err)
	}
	return WriteFrame(w, b)
}

// WriteResponse encodes and frames resp onto w.
func WriteResponse(w writerFramer, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("ipc: marshal response: %w", err)
	}
	return WriteFrame(w, b)
}

// writerFramer is the minimal io.Writer surface WriteFrame needs; named
// here so callers don't have to import io just to pass a net.Conn through.
type writerFramer interface {
	Write(p []byte) (n int, err error)
}

// DecodeRequest parses a single framed request payload.
func DecodeRequest(frame []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return Request{}, fmt.Errorf("ipc: decode request: %w", err)
	}
	return req, nil
}

// DecodeResponse parses a single framed response payload.
func DecodeResponse(frame []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		return Response{}, fmt.Errorf("ipc: decode response: %w", err)
	}
	return resp, nil
}
