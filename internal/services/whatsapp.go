package services

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

var nonDigits = regexp.MustCompile(`\D`)

// ErrAdminPhoneMissing is returned when no WhatsApp number is configured.
var ErrAdminPhoneMissing = errors.New("admin phone not configured")

// BookingWhatsAppMessage formats the operator's WhatsApp message for a booking.
// Optional lines are left blank rather than removed so the layout stays stable.
func BookingWhatsAppMessage(b models.Booking) string {
	email := ""
	if b.Email != "" {
		email = "📧 *Email:* " + b.Email
	}
	note := ""
	if b.Message != "" {
		note = "💬 *Message:* " + b.Message
	}

	lines := []string{
		"🔔 *Nouvelle Réservation!*",
		"",
		"👤 *Client:* " + b.Name,
		"📞 *Téléphone:* " + b.Phone,
		email,
		"💇 *Service:* " + b.Service,
		"📅 *Date:* " + b.EventDate,
		"⏰ *Heure:* " + b.EventTime,
		note,
		"",
		"Connectez-vous au panneau admin pour gérer cette réservation.",
	}
	return strings.Join(lines, "\n")
}

// BuildWhatsAppLink returns a wa.me link that opens a chat with the operator
// pre-filled with the booking details.
func BuildWhatsAppLink(adminPhone string, b models.Booking) (string, error) {
	phone := nonDigits.ReplaceAllString(adminPhone, "")
	if phone == "" {
		return "", pusherr.Configuration("whatsapp.link", ErrAdminPhoneMissing)
	}
	return "https://wa.me/" + phone + "?text=" + encodeURIComponent(BookingWhatsAppMessage(b)), nil
}

// uriComponentUnescapes undoes the QueryEscape choices that differ from
// ECMAScript encodeURIComponent. A literal "+" is already %2B.
var uriComponentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapes everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func encodeURIComponent(s string) string {
	return uriComponentUnescapes.Replace(url.QueryEscape(s))
}
