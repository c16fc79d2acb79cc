package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hons90/CRM/internal/config"
	"github.com/Hons90/CRM/pkg/logger"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioProvider places calls through the Twilio REST API.
// The callee is dialed first; when they answer, TwiML bridges them to the agent's client.
type TwilioProvider struct {
	accountSID        string
	authToken         string
	from              string
	statusCallbackURL string
	baseURL           string
	client            *http.Client
}

func NewTwilioProvider(cfg config.TwilioConfig, client *http.Client) (*TwilioProvider, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("telephony: twilio account sid and auth token are required")
	}
	if cfg.FromNumber == "" {
		return nil, errors.New("telephony: twilio from number is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultTwilioBaseURL
	}
	return &TwilioProvider{
		accountSID:        cfg.AccountSID,
		authToken:         cfg.AuthToken,
		from:              cfg.FromNumber,
		statusCallbackURL: cfg.StatusCallbackURL,
		baseURL:           base,
		client:            client,
	}, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

// HealthCheck fetches the account resource, the lightest authenticated endpoint.
func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.accountURL(".json"), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: twilio health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telephony: twilio health check: status %d", resp.StatusCode)
	}
	return nil
}

type twilioCall struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (p *TwilioProvider) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	twiml, err := RenderAgentBridge(req.UserID, p.from)
	if err != nil {
		return DialResult{}, err
	}

	form := url.Values{}
	form.Set("To", req.PhoneNumber)
	form.Set("From", p.from)
	form.Set("Twiml", twiml)
	if p.statusCallbackURL != "" {
		form.Set("StatusCallback", p.statusCallbackURL)
		form.Add("StatusCallbackEvent", "answered")
		form.Add("StatusCallbackEvent", "completed")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.accountURL("/Calls.json"), strings.NewReader(form.Encode()))
	if err != nil {
		return DialResult{}, err
	}
	httpReq.SetBasicAuth(p.accountSID, p.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return DialResult{}, fmt.Errorf("telephony: twilio create call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return DialResult{}, fmt.Errorf("telephony: twilio read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var te twilioError
		_ = json.Unmarshal(body, &te)
		if te.Message == "" {
			te.Message = http.StatusText(resp.StatusCode)
		}
		return DialResult{}, fmt.Errorf("%w: twilio %d (code %d): %s", ErrDialRejected, resp.StatusCode, te.Code, te.Message)
	}

	var call twilioCall
	if err := json.Unmarshal(body, &call); err != nil {
		return DialResult{}, fmt.Errorf("telephony: twilio decode call: %w", err)
	}
	if call.SID == "" {
		return DialResult{}, errors.New("telephony: twilio returned no call sid")
	}

	logger.From(ctx).Info("twilio call created", "call_sid", call.SID, "status", call.Status, "user_id", req.UserID)
	return DialResult{
		Success: true,
		CallID:  call.SID,
		Message: "Call " + call.Status,
	}, nil
}

func (p *TwilioProvider) accountURL(suffix string) string {
	return p.baseURL + "/2010-04-01/Accounts/" + url.PathEscape(p.accountSID) + suffix
}
