package models

// Delivery states recorded for a dispatch.
const (
	StatusProcessing = "processing"
	StatusDelivered  = "delivered"
	StatusFailed     = "failed"
)

// PushResult is the internal record of one dispatch. Token is always redacted.
type PushResult struct {
	RequestID string `json:"request_id"`
	Token     string `json:"token"`
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Delivered reports whether the provider accepted the message.
func (r *PushResult) Delivered() bool {
	return r != nil && r.Status == StatusDelivered
}
