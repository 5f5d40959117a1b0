package client

import (
	"fmt"
	"net/http"
	"time"
)

// TimeoutError means the deadline elapsed before the transport settled.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout after %s", e.After)
}

// TransportError wraps a network or connection level failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusinessError is a well-formed response whose HTTP status or business
// code signals failure.
type BusinessError struct {
	Status  int
	Code    Code
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("business failure (status=%d code=%s): %s", e.Status, e.Code, e.Message)
}

// DecodeError means the response body, or the payload inside a successful
// envelope, could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StreamOpenError is returned when the exchange that starts a stream fails
// before any byte of the body is read.
type StreamOpenError struct {
	Status int // 0 when the transport itself failed
	Err    error
}

func (e *StreamOpenError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("open stream: request failed with status %d", e.Status)
	}
	return fmt.Sprintf("open stream: %v", e.Err)
}

func (e *StreamOpenError) Unwrap() error { return e.Err }

// FrameDecodeError is reported when a terminated frame carries a payload
// that is not valid JSON. The stream halts after it.
type FrameDecodeError struct {
	Event   string
	Payload string
	Err     error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("decode frame %q: %v", e.Event, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// notification returns the user facing message for a dispatcher failure.
func notification(err error) string {
	switch e := err.(type) {
	case *TimeoutError:
		return "request timed out"
	case *BusinessError:
		if e.Message != "" {
			return e.Message
		}
		if text := http.StatusText(e.Status); text != "" {
			return text
		}
		return "request failed"
	default:
		return "request failed"
	}
}
