// Package calendar reads the firm's busy times from an external calendar
// and turns working hours into bookable slots.
package calendar

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

var ErrUnavailable = errors.New("calendar: upstream unavailable")

// Client reports busy intervals overlapping [from, to).
type Client interface {
	FreeBusy(ctx context.Context, from, to time.Time) ([]domain.Slot, error)
}

// Static is a Client with a fixed busy list. The zero value is never busy.
type Static struct {
	Busy []domain.Slot
}

func (s Static) FreeBusy(_ context.Context, from, to time.Time) ([]domain.Slot, error) {
	window := domain.Slot{Start: from, End: to}
	var out []domain.Slot
	for _, b := range s.Busy {
		if b.Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

// WorkingHours describes when appointments may be booked.
type WorkingHours struct {
	Location   *time.Location
	StartHour  int
	EndHour    int
	Days       []time.Weekday
	SlotLength time.Duration
}

// DefaultWorkingHours is 09:00-17:00 Monday to Friday in 30 minute slots.
func DefaultWorkingHours(loc *time.Location) WorkingHours {
	if loc == nil {
		loc = time.UTC
	}
	return WorkingHours{
		Location:   loc,
		StartHour:  9,
		EndHour:    17,
		Days:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		SlotLength: 30 * time.Minute,
	}
}

func (w WorkingHours) works(d time.Weekday) bool {
	for _, wd := range w.Days {
		if wd == d {
			return true
		}
	}
	return false
}

// Window returns the working interval for the calendar day containing day,
// and false on a non-working day.
func (w WorkingHours) Window(day time.Time) (domain.Slot, bool) {
	d := day.In(w.Location)
	if !w.works(d.Weekday()) || w.EndHour <= w.StartHour {
		return domain.Slot{}, false
	}
	y, m, dd := d.Date()
	return domain.Slot{
		Start: time.Date(y, m, dd, w.StartHour, 0, 0, 0, w.Location),
		End:   time.Date(y, m, dd, w.EndHour, 0, 0, 0, w.Location),
	}, true
}

// Slots splits the working window of day into SlotLength pieces.
func (w WorkingHours) Slots(day time.Time) []domain.Slot {
	win, ok := w.Window(day)
	if !ok || w.SlotLength <= 0 {
		return nil
	}
	var out []domain.Slot
	for s := win.Start; !s.Add(w.SlotLength).After(win.End); s = s.Add(w.SlotLength) {
		out = append(out, domain.Slot{Start: s, End: s.Add(w.SlotLength)})
	}
	return out
}

// IsSlot reports whether s is exactly one of the slots of its day.
func (w WorkingHours) IsSlot(s domain.Slot) bool {
	for _, c := range w.Slots(s.Start) {
		if c.Start.Equal(s.Start) && c.End.Equal(s.End) {
			return true
		}
	}
	return false
}

// Free removes every slot that overlaps a busy interval or starts before
// notBefore. Output is sorted by start.
func Free(slots []domain.Slot, busy []domain.Slot, notBefore time.Time) []domain.Slot {
	out := make([]domain.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Start.Before(notBefore) {
			continue
		}
		taken := false
		for _, b := range busy {
			if s.Overlaps(b) {
				taken = true
				break
			}
		}
		if !taken {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
