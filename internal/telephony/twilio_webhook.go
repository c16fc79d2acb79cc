package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Hons90/CRM/internal/calls"
)

// TwilioStatusForm captures the subset of status callback fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid      string
	AccountSid   string
	CallStatus   string
	CallDuration int
	To           string
	From         string
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	f := TwilioStatusForm{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid: strings.TrimSpace(r.PostFormValue("AccountSid")),
		CallStatus: strings.TrimSpace(r.PostFormValue("CallStatus")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		From:       strings.TrimSpace(r.PostFormValue("From")),
	}
	// CallDuration is only present on the final callback.
	if d := strings.TrimSpace(r.PostFormValue("CallDuration")); d != "" {
		n, err := strconv.Atoi(d)
		if err == nil && n > 0 {
			f.CallDuration = n
		}
	}
	return f, nil
}

// LedgerStatus maps a Twilio call status onto a call log status.
// ok is false for intermediate states (queued, ringing, initiated) that change nothing.
func (f TwilioStatusForm) LedgerStatus() (status string, ok bool) {
	switch f.CallStatus {
	case "in-progress", "completed":
		return calls.StatusAnswered, true
	case "no-answer", "busy", "failed", "canceled":
		return calls.StatusMissed, true
	default:
		return "", false
	}
}

// TwilioSignature computes X-Twilio-Signature for a form POST to fullURL.
func TwilioSignature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidTwilioSignature reports whether signature matches the request body signed for fullURL.
func ValidTwilioSignature(authToken, fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	want := TwilioSignature(authToken, fullURL, form)
	return hmac.Equal([]byte(want), []byte(signature))
}
