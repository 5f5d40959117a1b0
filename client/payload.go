package client

import (
	"encoding/json"
	"time"
)

type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// Code is the business status carried in every response envelope.
type Code string

const (
	CodeSuccess       Code = "success"
	CodeFail          Code = "fail"
	CodeNotFound      Code = "not_found"
	CodeUnauthorized  Code = "unauthorized"
	CodeForbidden     Code = "forbidden"
	CodeValidateError Code = "validate_error"
)

// Valid reports whether c belongs to the closed set of business codes.
func (c Code) Valid() bool {
	switch c {
	case CodeSuccess, CodeFail, CodeNotFound, CodeUnauthorized, CodeForbidden, CodeValidateError:
		return true
	}
	return false
}

type Param struct {
	Key   string
	Value any // string, bool or any numeric kind
}

// Params keeps query parameters in insertion order.
type Params []Param

func (p Params) Add(key string, value any) Params {
	return append(p, Param{Key: key, Value: value})
}

type RequestConfig struct {
	Method  Method
	Path    string
	Params  Params        // GET only
	Body    any           // JSON-encoded when non-nil
	Timeout time.Duration // <= 0 uses the dispatcher default
}

type Envelope[T any] struct {
	Code    Code   `json:"code"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func (e *Envelope[T]) OK() bool {
	return e != nil && e.Code == CodeSuccess
}

type Paginator struct {
	TotalPage   int `json:"total_page"`
	TotalRecord int `json:"total_record"`
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
}

type Page[T any] struct {
	List      []T       `json:"list"`
	Paginator Paginator `json:"paginator"`
}

// StreamEvent is one fully received event/data frame. Data is always
// valid JSON; it is decoded on demand.
type StreamEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (e StreamEvent) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

func (e StreamEvent) Map() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
