package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/calls"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTwilioStatusCallback(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&CallStatus=completed&CallDuration=42&To=%2B15551234567")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioStatusCallback(r)
	require.NoError(t, err)
	assert.Equal(t, "CA123", form.CallSid)
	assert.Equal(t, 42, form.CallDuration)
	assert.Equal(t, "+15551234567", form.To)

	status, ok := form.LedgerStatus()
	assert.True(t, ok)
	assert.Equal(t, calls.StatusAnswered, status)
}

func TestLedgerStatusMapping(t *testing.T) {
	cases := map[string]string{
		"completed":   calls.StatusAnswered,
		"in-progress": calls.StatusAnswered,
		"no-answer":   calls.StatusMissed,
		"busy":        calls.StatusMissed,
		"failed":      calls.StatusMissed,
		"canceled":    calls.StatusMissed,
		"ringing":     "",
		"queued":      "",
	}
	for in, want := range cases {
		got, ok := TwilioStatusForm{CallStatus: in}.LedgerStatus()
		assert.Equal(t, want, got, in)
		assert.Equal(t, want != "", ok, in)
	}
}

func TestTwilioSignature(t *testing.T) {
	form := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	sig := TwilioSignature("12345", "https://example.com/myapp.php?foo=1&bar=2", form)
	assert.Equal(t, "vNe7KK2kJwCsxc9K3OLkkKB3qqI=", sig)
	assert.True(t, ValidTwilioSignature("12345", "https://example.com/myapp.php?foo=1&bar=2", form, sig))
	assert.False(t, ValidTwilioSignature("other", "https://example.com/myapp.php?foo=1&bar=2", form, sig))
	assert.False(t, ValidTwilioSignature("12345", "https://example.com/myapp.php?foo=1&bar=2", form, ""))
}

type fakeRecorder struct {
	calls []string
	err   error
}

func (f *fakeRecorder) ApplyProviderStatus(_ context.Context, id, status string, duration int) (calls.CallLog, error) {
	f.calls = append(f.calls, id+":"+status)
	return calls.CallLog{}, f.err
}

func postStatus(t *testing.T, h TwilioStatusHandler, form url.Values, sign string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/status", h.HandleStatus)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sign != "" {
		req.Header.Set(headerTwilioSignature, sign)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTwilioStatusHandler(t *testing.T) {
	const publicURL = "https://crm.example.com/webhooks/twilio/status"
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"busy"}}

	t.Run("signed update applies", func(t *testing.T) {
		rec := &fakeRecorder{}
		h := TwilioStatusHandler{Recorder: rec, AuthToken: "tok", PublicURL: publicURL}
		w := postStatus(t, h, form, TwilioSignature("tok", publicURL, form))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"CA1:" + calls.StatusMissed}, rec.calls)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		rec := &fakeRecorder{}
		h := TwilioStatusHandler{Recorder: rec, AuthToken: "tok", PublicURL: publicURL}
		w := postStatus(t, h, form, "bogus")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, rec.calls)
	})

	t.Run("intermediate status is ignored", func(t *testing.T) {
		rec := &fakeRecorder{}
		h := TwilioStatusHandler{Recorder: rec}
		w := postStatus(t, h, url.Values{"CallSid": {"CA1"}, "CallStatus": {"ringing"}}, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, rec.calls)
	})

	t.Run("unknown call is acknowledged", func(t *testing.T) {
		rec := &fakeRecorder{err: apperr.NotFound("provider call", "CA1")}
		w := postStatus(t, TwilioStatusHandler{Recorder: rec}, form, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("storage failure asks for a retry", func(t *testing.T) {
		rec := &fakeRecorder{err: apperr.Storage("x", assert.AnError)}
		w := postStatus(t, TwilioStatusHandler{Recorder: rec}, form, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
