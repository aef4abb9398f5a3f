package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/settings"
	"github.com/stretchr/testify/require"
)

func newSettings(t *testing.T, e *testEnv) *SettingsService {
	t.Helper()
	s, err := NewSettingsService(e.store, e.sealer, 16, time.Minute, settings.ClockFunc(e.clock.Now))
	require.NoError(t, err)
	return s
}

func TestSettingsSecretsAreSealedAndMasked(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := newSettings(t, e)

	v, err := s.Set(ctx, rootActor, settings.SMTPPassword, "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, settings.Mask, v.Value)

	row, err := e.store.Settings().GetSetting(ctx, settings.SMTPPassword)
	require.NoError(t, err)
	require.True(t, row.Secret)
	require.NotContains(t, row.Value, "hunter2")

	got, err := s.Get(ctx, rootActor, settings.SMTPPassword)
	require.NoError(t, err)
	require.Equal(t, settings.Mask, got.Value)

	plain, err := s.Value(ctx, settings.SMTPPassword)
	require.NoError(t, err)
	require.Equal(t, "hunter2hunter2", plain)
}

func TestSettingsSetInvalidatesCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := newSettings(t, e)

	_, err := s.Set(ctx, rootActor, settings.SMTPHost, "smtp.one.example")
	require.NoError(t, err)
	v, err := s.Value(ctx, settings.SMTPHost)
	require.NoError(t, err)
	require.Equal(t, "smtp.one.example", v)

	_, err = s.Set(ctx, rootActor, settings.SMTPHost, "smtp.two.example")
	require.NoError(t, err)
	v, err = s.Value(ctx, settings.SMTPHost)
	require.NoError(t, err)
	require.Equal(t, "smtp.two.example", v)

	// Writes behind the service's back show up once the TTL lapses.
	require.NoError(t, e.store.Settings().PutSetting(ctx, domain.Setting{Key: settings.SMTPHost, Value: "smtp.three.example", UpdatedAt: e.clock.Now()}))
	v, _ = s.Value(ctx, settings.SMTPHost)
	require.Equal(t, "smtp.two.example", v)
	e.clock.Advance(time.Minute)
	v, _ = s.Value(ctx, settings.SMTPHost)
	require.Equal(t, "smtp.three.example", v)
}

func TestSettingsValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := newSettings(t, e)
	staff := e.user(t, domain.RoleStaff)

	_, err := s.Set(ctx, actorOf(staff), settings.SMTPHost, "x")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = s.Set(ctx, rootActor, "smtp.nope", "x")
	require.ErrorIs(t, err, ErrUnknownSetting)
	_, err = s.Set(ctx, rootActor, settings.SMTPPort, "99999")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Set(ctx, rootActor, settings.FirmNotifyTo, "not an email")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSettingsListAndSMTPConfig(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := newSettings(t, e)

	for k, v := range map[string]string{
		settings.SMTPHost:     "smtp.firm.example",
		settings.SMTPPort:     "2525",
		settings.SMTPUsername: "mailer",
		settings.SMTPPassword: "s3cret-pass",
		settings.SMTPFrom:     "portal@firm.example",
		settings.FirmNotifyTo: "office@firm.example",
	} {
		_, err := s.Set(ctx, rootActor, k, v)
		require.NoError(t, err)
	}

	all, err := s.List(ctx, rootActor)
	require.NoError(t, err)
	require.Len(t, all, len(settings.Keys()))
	for _, v := range all {
		if v.Key == settings.CalendarID {
			require.False(t, v.Set)
		}
		if v.Secret && v.Set {
			require.Equal(t, settings.Mask, v.Value)
		}
	}

	cfg, err := s.SMTPConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.SMTPConfig{
		Host:     "smtp.firm.example",
		Port:     2525,
		Username: "mailer",
		Password: "s3cret-pass",
		From:     "portal@firm.example",
		NotifyTo: "office@firm.example",
	}, cfg)

	addr, err := s.NotifyAddress(ctx)
	require.NoError(t, err)
	require.Equal(t, "office@firm.example", addr)
}
