// Package intent resolves free-form user text into structured schedule
// commands via an LLM collaborator. The model only classifies; every
// decision that touches the sheet is validated and gated elsewhere.
package intent

import (
	"context"
	"errors"
)

// LLMClient is the interface all providers implement.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Classifier-visible failure categories. The engine maps these to
// user-safe messages; raw provider errors never reach the chat.
var (
	ErrRateLimited = errors.New("assistant is receiving too many requests")
	ErrAuth        = errors.New("assistant authorization failed")
	ErrConnection  = errors.New("assistant is unreachable")
	ErrServer      = errors.New("assistant service is temporarily unavailable")
)
