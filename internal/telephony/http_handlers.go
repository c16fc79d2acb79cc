package telephony

import (
	"context"
	"errors"
	"net/http"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/pkg/logger"

	"github.com/gin-gonic/gin"
)

const headerTwilioSignature = "X-Twilio-Signature"

// StatusRecorder applies provider-pushed statuses to the call log.
type StatusRecorder interface {
	ApplyProviderStatus(ctx context.Context, providerCallID, status string, duration int) (calls.CallLog, error)
}

// TwilioStatusHandler converts the Twilio status callback to a ledger update.
//
// No business logic here.
type TwilioStatusHandler struct {
	Recorder StatusRecorder

	// AuthToken enables X-Twilio-Signature validation when set.
	AuthToken string
	// PublicURL is the callback URL exactly as configured at Twilio.
	// When empty it is rebuilt from the request, which breaks behind rewriting proxies.
	PublicURL string
}

func (h TwilioStatusHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Recorder == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call ledger not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio status parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if h.AuthToken != "" {
		if !ValidTwilioSignature(h.AuthToken, h.callbackURL(c), c.Request.PostForm, c.GetHeader(headerTwilioSignature)) {
			log.Warn("twilio signature mismatch", "call_sid", form.CallSid)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	}

	status, ok := form.LedgerStatus()
	if !ok || form.CallSid == "" {
		c.Status(http.StatusNoContent)
		return
	}

	_, err = h.Recorder.ApplyProviderStatus(c.Request.Context(), form.CallSid, status, form.CallDuration)
	switch {
	case err == nil:
		log.Info("call status applied", "call_sid", form.CallSid, "status", status, "duration", form.CallDuration)
	case errors.Is(err, apperr.ErrNotFound):
		// Calls placed outside this service share the account.
		log.Warn("status for unknown call", "call_sid", form.CallSid)
	default:
		log.Error("apply call status failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status not recorded"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h TwilioStatusHandler) callbackURL(c *gin.Context) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
