package ai

import "context"

// Request is the payload sent to the external correction service.
type Request struct {
	Model              string
	SystemInstructions string
	UserText           string
}

// Result carries the service output and its actual token usage.
type Result struct {
	OutputText       string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns prompt plus completion tokens.
func (r Result) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// Corrector runs one correction request against the external service.
// A failed call returns an error carrying the provider's message.
type Corrector interface {
	Correct(ctx context.Context, req Request) (Result, error)
}
