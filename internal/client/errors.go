package client

import (
	"fmt"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindAPI       ErrorKind = "api"
	KindAuth      ErrorKind = "auth"
	KindDecode    ErrorKind = "decode"
)

// Request identifies the remote call an error came from.
type Request struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

func (r Request) String() string {
	return r.Method + " " + r.URL
}

// ValidationError is one itemized error returned by the catalog API.
type ValidationError struct {
	ErrorCode string `json:"ErrorCode"`
	Message   string `json:"Message"`
	Data      any    `json:"Data,omitempty"`
}

type errorBody struct {
	Errors []ValidationError `json:"Errors"`
}

// APIError is returned by every CatalogService call that fails.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Request    *Request
	Errors     []ValidationError
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.Request != nil {
		b.WriteString(e.Request.String())
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "%d ", e.StatusCode)
	}
	b.WriteString(e.Message)
	if e.Err != nil && e.Err.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newTransportError(req *Request, err error) *APIError {
	return &APIError{Kind: KindTransport, Message: "request failed", Request: req, Err: err}
}

func newDecodeError(req *Request, status int, err error) *APIError {
	return &APIError{Kind: KindDecode, StatusCode: status, Message: "failed to decode response", Request: req, Err: err}
}

// newStatusError builds an error from a non-2xx response. The body is parsed
// for itemized errors when it has the API's error shape.
func newStatusError(req *Request, status int, body []byte) *APIError {
	kind := KindAPI
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}

	apiErr := &APIError{
		Kind:       kind,
		StatusCode: status,
		Message:    http.StatusText(status),
		Request:    req,
	}

	var parsed errorBody
	if err := unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		apiErr.Errors = parsed.Errors
		if parsed.Errors[0].Message != "" {
			apiErr.Message = parsed.Errors[0].Message
		}
	}

	return apiErr
}
