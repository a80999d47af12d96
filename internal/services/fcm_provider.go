package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

// FCMProvider sends notifications through the FCM HTTP v1 API.
type FCMProvider struct {
	endpoint  string
	projectID string
	client    *http.Client
	logger    *slog.Logger
}

func NewFCMProvider(endpoint, projectID string, timeout time.Duration, logger *slog.Logger) *FCMProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if endpoint == "" {
		endpoint = "https://fcm.googleapis.com"
	}
	return &FCMProvider{
		endpoint:  strings.TrimRight(endpoint, "/"),
		projectID: projectID,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (p *FCMProvider) Name() string {
	return "fcm"
}

// SendURL is the messages:send endpoint for the configured project.
func (p *FCMProvider) SendURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/messages:send", p.endpoint, url.PathEscape(p.projectID))
}

func (p *FCMProvider) Send(ctx context.Context, bearer string, payload *PushPayload) (string, error) {
	body, err := json.Marshal(buildMessage(payload))
	if err != nil {
		return "", pusherr.Validation("fcm.send", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.SendURL(), bytes.NewReader(body))
	if err != nil {
		return "", pusherr.Configuration("fcm.send", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", pusherr.Transport("fcm.send", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", pusherr.Transport("fcm.send", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := fcmErrorCode(raw)
		p.logger.Warn("fcm rejected message",
			slog.Int("status", resp.StatusCode),
			slog.String("code", code),
		)
		return "", pusherr.Delivery("fcm.send", resp.StatusCode, code, string(raw))
	}

	var sent fcmSendResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sent); err != nil {
			p.logger.Warn("fcm response was not JSON", slog.Any("error", err))
		}
	}
	return sent.Name, nil
}

type fcmSendResponse struct {
	Name string `json:"name"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// fcmErrorCode prefers the FCM specific errorCode over the generic status.
func fcmErrorCode(raw []byte) string {
	var parsed fcmErrorResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	for _, d := range parsed.Error.Details {
		if d.ErrorCode != "" {
			return d.ErrorCode
		}
	}
	return parsed.Error.Status
}

func buildMessage(payload *PushPayload) map[string]interface{} {
	data := payload.Data
	if data == nil {
		data = map[string]string{}
	}
	msg := map[string]interface{}{
		"token": payload.Token,
		"notification": map[string]interface{}{
			"title": payload.Title,
			"body":  payload.Body,
		},
		"data": data,
	}
	if payload.Link != "" {
		msg["webpush"] = map[string]interface{}{
			"fcm_options": map[string]interface{}{
				"link": payload.Link,
			},
		}
	}
	for key, block := range providerOverrides(payload.Overrides, "fcm") {
		if !platformBlocks[key] {
			continue
		}
		nested, ok := block.(map[string]interface{})
		if !ok {
			continue
		}
		if dst, ok := msg[key].(map[string]interface{}); ok {
			mergeMaps(dst, nested)
		} else {
			msg[key] = nested
		}
	}
	return map[string]interface{}{"message": msg}
}

// platformBlocks are the only message keys a caller may override. The
// recipient, notification and data always come from the validated request.
var platformBlocks = map[string]bool{
	"webpush": true,
	"android": true,
	"apns":    true,
}

// validateOverrides accepts only {"fcm": {"webpush"|"android"|"apns": {...}}}.
func validateOverrides(overrides map[string]interface{}) error {
	for provider, raw := range overrides {
		if provider != "fcm" {
			return fmt.Errorf("overrides.%s is not supported", provider)
		}
		blocks, ok := raw.(map[string]interface{})
		if !ok {
			return errors.New("overrides.fcm must be an object")
		}
		for key, block := range blocks {
			if !platformBlocks[key] {
				return fmt.Errorf("overrides.fcm.%s is not allowed", key)
			}
			if _, ok := block.(map[string]interface{}); !ok {
				return fmt.Errorf("overrides.fcm.%s must be an object", key)
			}
		}
	}
	return nil
}

func providerOverrides(overrides map[string]interface{}, key string) map[string]interface{} {
	if overrides == nil {
		return nil
	}
	if cast, ok := overrides[key].(map[string]interface{}); ok {
		return cast
	}
	return nil
}

func mergeMaps(dst map[string]interface{}, src map[string]interface{}) {
	for key, value := range src {
		if nestedSrc, ok := value.(map[string]interface{}); ok {
			if nestedDst, ok := dst[key].(map[string]interface{}); ok {
				mergeMaps(nestedDst, nestedSrc)
				continue
			}
		}
		dst[key] = value
	}
}

// isTokenFatal reports FCM codes meaning the recipient token will never work again.
func isTokenFatal(code string) bool {
	switch code {
	case "UNREGISTERED", "SENDER_ID_MISMATCH":
		return true
	default:
		return false
	}
}
