package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

type HTTPConfig struct {
	BaseURL      string
	CalendarID   string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// HTTPClient queries a Google Calendar compatible freeBusy endpoint with a
// client-credentials bearer token.
type HTTPClient struct {
	baseURL    string
	calendarID string
	http       *http.Client
}

func NewHTTPClient(ctx context.Context, cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.CalendarID == "" || cfg.TokenURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("calendar: calendar id, token url and client id are required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	hc := cc.Client(ctx)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc.Timeout = timeout

	return &HTTPClient{baseURL: base, calendarID: cfg.CalendarID, http: hc}, nil
}

type freeBusyRequest struct {
	TimeMin string         `json:"timeMin"`
	TimeMax string         `json:"timeMax"`
	Items   []freeBusyItem `json:"items"`
}

type freeBusyItem struct {
	ID string `json:"id"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"calendars"`
}

func (c *HTTPClient) FreeBusy(ctx context.Context, from, to time.Time) ([]domain.Slot, error) {
	body, err := json.Marshal(freeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items:   []freeBusyItem{{ID: c.calendarID}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/freeBusy", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var fb freeBusyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&fb); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	cal, ok := fb.Calendars[c.calendarID]
	if !ok {
		return nil, fmt.Errorf("%w: calendar %q missing from response", ErrUnavailable, c.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, cal.Errors[0].Reason)
	}

	out := make([]domain.Slot, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		out = append(out, domain.Slot{Start: b.Start.UTC(), End: b.End.UTC()})
	}
	return out, nil
}
