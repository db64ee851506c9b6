package mcp

import (
	"encoding/json"
)

// Response is the JSON body every revision tool returns
type Response struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    interface{}   `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains counts about the response
type ResponseMeta struct {
	Count   int `json:"count"`
	Pending int `json:"pending"`
	Orphans int `json:"orphans,omitempty"`
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(message string, data interface{}) *Response {
	return &Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(error string) *Response {
	return &Response{
		Success: false,
		Error:   error,
	}
}

// ToJSON converts the response to JSON
func (r *Response) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
