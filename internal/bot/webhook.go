package bot

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"github.com/pathakanu/myAgenda/internal/twilio"
)

// RequestValidator checks the signature Twilio attaches to webhook calls.
type RequestValidator interface {
	ValidateRequest(url string, params map[string]string, signature string) bool
}

// Handler returns the HTTP handler for incoming Twilio WhatsApp messages.
// With a nil validator signatures are not checked.
func (b *Bot) Handler(validator RequestValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.handleIncomingMessage(w, r, validator)
	}
}

// handleIncomingMessage processes Twilio webhook POST requests.
func (b *Bot) handleIncomingMessage(w http.ResponseWriter, r *http.Request, validator RequestValidator) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		b.logger.Printf("webhook: parse error: %v", err)
		b.writeTwilioResponse(w, "Sorry, I couldn't understand that request.")
		return
	}

	if validator != nil {
		signature := r.Header.Get("X-Twilio-Signature")
		if !validator.ValidateRequest(requestURL(r), DecodeTwilioForm(r.PostForm), signature) {
			b.logger.Printf("webhook: rejected request with invalid signature from %s", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	if sid := r.PostFormValue("MessageSid"); sid != "" && b.sessions.Duplicate(sid) {
		b.logger.Printf("webhook: duplicate delivery of %s ignored", sid)
		b.writeTwilioResponse(w, "")
		return
	}

	userID := twilio.UserID(r.PostFormValue("From"))
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if userID == "" || body == "" {
		b.writeTwilioResponse(w, msgEmptyMessage)
		return
	}

	b.writeTwilioResponse(w, b.Reply(r.Context(), userID, body))
}

// writeTwilioResponse answers with TwiML. An empty message produces an
// empty <Response/>, which sends nothing back.
func (b *Bot) writeTwilioResponse(w http.ResponseWriter, message string) {
	twiml := struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message,omitempty"`
	}{
		Message: message,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(twiml); err != nil {
		b.logger.Printf("twilio response encode: %v", err)
	}
}

// requestURL rebuilds the public URL Twilio signed, honouring the
// forwarding headers set by a TLS-terminating proxy.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// DecodeTwilioForm extracts the POST form data into a map for convenience.
func DecodeTwilioForm(values url.Values) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		if len(value) > 0 {
			result[key] = value[0]
		}
	}
	return result
}
