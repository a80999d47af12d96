package services

import (
	"context"
)

// PushPayload is the fully rendered message handed to a provider.
type PushPayload struct {
	Token     string
	Title     string
	Body      string
	Data      map[string]string
	Link      string
	Overrides map[string]interface{}
}

// PushProvider represents a downstream push API.
type PushProvider interface {
	Name() string
	// Send delivers one message authorised by bearer and returns the
	// provider's message id.
	Send(ctx context.Context, bearer string, payload *PushPayload) (string, error)
}
