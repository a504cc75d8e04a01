package http

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"
)

// Response represents a fully read HTTP response
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Timing     TimingInfo
	body       []byte
}

// NewResponse builds a response from already available parts.
func NewResponse(statusCode int, headers http.Header, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Headers:    headers,
		body:       body,
	}
}

// Body returns the response body.
func (r *Response) Body() []byte {
	return r.body
}

// String returns the response body as a string
func (r *Response) String() string {
	return string(r.body)
}

// JSON unmarshals the response body into v
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.body, v)
}

// JSONField returns the value at path using gjson syntax, e.g. "token" or
// "data.id". Check Exists on the result for presence.
func (r *Response) JSONField(path string) gjson.Result {
	if !gjson.ValidBytes(r.body) {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.body, path)
}

// GetHeader returns the value of the specified header
func (r *Response) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError returns true if the response status code is in the 4xx range
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError returns true if the response status code is in the 5xx range
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}
