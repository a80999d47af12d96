package models

// PushNotificationRequest is the inbound "deliver notification" request.
// JSON names follow the functions API the web client already calls.
type PushNotificationRequest struct {
	RecipientToken string            `json:"token" validate:"required"`
	Title          string            `json:"title" validate:"required"`
	Body           string            `json:"body" validate:"required"`
	Data           map[string]string `json:"data,omitempty"`
	// Overrides customise platform blocks of the FCM message, e.g.
	// {"fcm": {"webpush": {"headers": {"Urgency": "high"}}}}. Only webpush,
	// android and apns may be set.
	Overrides map[string]interface{} `json:"overrides,omitempty"`
}

// DeliveryResult is what the inbound boundary answers with.
type DeliveryResult struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// AdminAlert is a notification addressed to the salon operator.
type AdminAlert struct {
	Title string            `json:"title" validate:"required"`
	Body  string            `json:"body" validate:"required"`
	Data  map[string]string `json:"data,omitempty"`
}
