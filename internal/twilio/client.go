package twilio

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	twilio "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// UserPrefix marks user ids that belong to WhatsApp senders.
const UserPrefix = "wa:"

// maxBodyRunes is the WhatsApp body limit enforced by Twilio.
const maxBodyRunes = 1600

// Client wraps Twilio messaging operations required by the bot.
type Client struct {
	client       *twilio.RestClient
	validator    *twclient.RequestValidator
	fromWhatsApp string
	logger       *log.Logger
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
func New(accountSID, authToken, fromWhatsApp string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	validator := twclient.NewRequestValidator(authToken)
	return &Client{
		client:       twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		validator:    &validator,
		fromWhatsApp: fromWhatsApp,
		logger:       logger,
	}
}

// UserID maps a webhook "From" value to a store user id.
func UserID(from string) string {
	number := strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")
	if number == "" {
		return ""
	}
	return UserPrefix + number
}

// Notify delivers text to a "wa:" user.
func (c *Client) Notify(_ context.Context, userID, text string) error {
	if !strings.HasPrefix(userID, UserPrefix) {
		return fmt.Errorf("twilio: not a WhatsApp user id: %q", userID)
	}
	return c.SendWhatsAppMessage(strings.TrimPrefix(userID, UserPrefix), text)
}

// ValidateRequest checks the X-Twilio-Signature of a webhook call.
func (c *Client) ValidateRequest(url string, params map[string]string, signature string) bool {
	if c.validator == nil {
		return false
	}
	return c.validator.Validate(url, params, signature)
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio's API. Bodies over
// the WhatsApp limit are sent as several messages.
func (c *Client) SendWhatsAppMessage(to, body string) error {
	if c.client == nil {
		return fmt.Errorf("twilio client not initialised")
	}

	sender := normalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return fmt.Errorf("twilio sender WhatsApp number is not configured")
	}

	recipient := normalizeWhatsAppAddress(to)
	if recipient == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	for _, part := range splitBody(body, maxBodyRunes) {
		params := &openapi.CreateMessageParams{}
		params.SetTo(recipient)
		params.SetFrom(sender)
		params.SetBody(part)

		resp, err := c.client.Api.CreateMessage(params)
		if err != nil {
			return fmt.Errorf("twilio send message error: %w", err)
		}
		if resp.Sid != nil {
			c.logger.Printf("twilio: message to %s sent, SID %s", recipient, *resp.Sid)
		}
	}
	return nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}

// splitBody cuts body into chunks of at most limit runes, preferring line
// breaks.
func splitBody(body string, limit int) []string {
	runes := []rune(body)
	if len(runes) <= limit {
		return []string{body}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
