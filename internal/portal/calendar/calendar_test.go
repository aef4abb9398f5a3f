package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

func sydney(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestSlotsWorkingDay(t *testing.T) {
	loc := sydney(t)
	w := DefaultWorkingHours(loc)

	monday := time.Date(2025, 3, 3, 12, 0, 0, 0, loc)
	slots := w.Slots(monday)
	require.Len(t, slots, 16)
	require.Equal(t, time.Date(2025, 3, 3, 9, 0, 0, 0, loc), slots[0].Start)
	require.Equal(t, time.Date(2025, 3, 3, 17, 0, 0, 0, loc), slots[15].End)

	require.True(t, w.IsSlot(slots[3]))
	require.False(t, w.IsSlot(domain.Slot{Start: slots[3].Start.Add(time.Minute), End: slots[3].End.Add(time.Minute)}))
}

func TestSlotsWeekend(t *testing.T) {
	w := DefaultWorkingHours(sydney(t))
	saturday := time.Date(2025, 3, 8, 12, 0, 0, 0, w.Location)
	require.Empty(t, w.Slots(saturday))
}

func TestFree(t *testing.T) {
	w := DefaultWorkingHours(time.UTC)
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	slots := w.Slots(day)

	busy := []domain.Slot{
		{Start: time.Date(2025, 3, 3, 9, 15, 0, 0, time.UTC), End: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)},
	}
	notBefore := time.Date(2025, 3, 3, 16, 0, 0, 0, time.UTC)

	free := Free(slots, busy, time.Time{})
	require.Len(t, free, 14, "09:00 and 09:30 overlap the busy block")
	require.Equal(t, 10, free[0].Start.Hour())

	free = Free(slots, busy, notBefore)
	require.Len(t, free, 2)
}

func TestStatic(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 3, 3, h, 0, 0, 0, time.UTC) }
	s := Static{Busy: []domain.Slot{{Start: at(9), End: at(10)}, {Start: at(20), End: at(21)}}}

	got, err := s.FreeBusy(context.Background(), at(8), at(17))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestHTTPClientFreeBusy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req freeBusyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars":{"firm@example.com":{"busy":[
			{"start":"2025-03-03T09:00:00Z","end":"2025-03-03T10:00:00Z"}
		]}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewHTTPClient(context.Background(), HTTPConfig{
		BaseURL:      srv.URL,
		CalendarID:   "firm@example.com",
		TokenURL:     srv.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	busy, err := c.FreeBusy(context.Background(), from, from.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, busy, 1)
	require.Equal(t, 9, busy[0].Start.Hour())
}

func TestHTTPClientUpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"t","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewHTTPClient(context.Background(), HTTPConfig{
		BaseURL: srv.URL, CalendarID: "x", TokenURL: srv.URL + "/token", ClientID: "id",
	})
	require.NoError(t, err)

	_, err = c.FreeBusy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.ErrorIs(t, err, ErrUnavailable)
}
