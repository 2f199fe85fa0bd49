// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// Envelope wraps every successful API response.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// OK wraps data in a success envelope.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail builds an error body.
func Fail(code, message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message, Code: code}
}

// MessageResponse is returned by operations without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}
