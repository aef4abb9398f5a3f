package settings

import "sort"

// Setting keys editable through the admin API.
const (
	SMTPHost     = "smtp.host"
	SMTPPort     = "smtp.port"
	SMTPUsername = "smtp.username"
	SMTPPassword = "smtp.password"
	SMTPFrom     = "smtp.from"
	FirmNotifyTo = "firm.notify_to"

	CalendarID           = "calendar.id"
	CalendarClientID     = "calendar.client_id"
	CalendarClientSecret = "calendar.client_secret"
)

// Key describes one known setting.
type Key struct {
	Name   string
	Secret bool // sealed at rest, masked on read
}

var known = map[string]Key{
	SMTPHost:             {Name: SMTPHost},
	SMTPPort:             {Name: SMTPPort},
	SMTPUsername:         {Name: SMTPUsername},
	SMTPPassword:         {Name: SMTPPassword, Secret: true},
	SMTPFrom:             {Name: SMTPFrom},
	FirmNotifyTo:         {Name: FirmNotifyTo},
	CalendarID:           {Name: CalendarID},
	CalendarClientID:     {Name: CalendarClientID},
	CalendarClientSecret: {Name: CalendarClientSecret, Secret: true},
}

// Lookup returns the definition of a known key.
func Lookup(name string) (Key, bool) {
	k, ok := known[name]
	return k, ok
}

// Keys lists every known key name in sorted order.
func Keys() []string {
	out := make([]string, 0, len(known))
	for k := range known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Mask is what API reads return for a secret that has a value.
const Mask = "********"
