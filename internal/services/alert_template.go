package services

import (
	"regexp"
	"strings"

	"github.com/boukath/cina/services/push_service/internal/models"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// AlertTemplate holds {{name}} style title and body templates for an admin alert.
type AlertTemplate struct {
	Title string
	Body  string
}

// BookingAlertTemplate is the French new-booking alert shown to the operator.
var BookingAlertTemplate = AlertTemplate{
	Title: "🎉 Nouvelle Réservation!",
	Body:  "{{clientName}} - {{service}} le {{date}} à {{time}}{{price}}",
}

// Render fills both templates from vars and attaches data unchanged.
func (t AlertTemplate) Render(vars map[string]string, data map[string]string) models.AdminAlert {
	return models.AdminAlert{
		Title: renderPlaceholders(t.Title, vars),
		Body:  renderPlaceholders(t.Body, vars),
		Data:  data,
	}
}

// renderPlaceholders substitutes known keys. Unknown placeholders stay as written.
func renderPlaceholders(tmpl string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		if value, ok := vars[key]; ok {
			return value
		}
		return match
	})
}
