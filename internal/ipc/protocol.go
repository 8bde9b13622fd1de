package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request is one newline-delimited command sent to the daemon.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the daemon's reply. Data carries command-specific JSON payloads.
type Response struct {
	OK      bool            `json:"ok"`
	State   string          `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Arg returns the i-th argument or "".
func (r Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Fail builds an error response.
func Fail(err error) Response {
	return Response{OK: false, Error: err.Error()}
}

// WithData encodes v into the response payload.
func (r Response) WithData(v any) (Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("encode response data: %w", err)
	}
	r.Data = raw
	return r, nil
}

// DecodeData unmarshals the response payload into v.
func (r Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return errors.New("response carries no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Err converts a failed response into an error; successful responses yield nil.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return errors.New("daemon reported failure")
	}
	return errors.New(r.Error)
}
