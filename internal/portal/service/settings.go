package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/settings"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

const maxSettingLength = 2048

// SettingsService stores runtime configuration. Secret values are sealed
// before they reach the store and only ever leave it masked, except
// through Value for internal consumers such as the mailer.
type SettingsService struct {
	store  store.Store
	sealer *cryptox.Sealer
	cache  *settings.Cache
	now    clock
}

func NewSettingsService(st store.Store, sealer *cryptox.Sealer, size int, ttl time.Duration, c settings.Clock) (*SettingsService, error) {
	s := &SettingsService{store: st, sealer: sealer}
	if c != nil {
		s.now = c.Now
	}
	cache, err := settings.NewCache(size, ttl, c, s.load)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

func (s *SettingsService) load(ctx context.Context, key string) (string, bool, error) {
	row, err := s.store.Settings().GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if !row.Secret {
		return row.Value, true, nil
	}

	raw, err := base64.StdEncoding.DecodeString(row.Value)
	if err != nil {
		return "", false, fmt.Errorf("settings: decode %s: %w", key, cryptox.ErrMalformedBlob)
	}
	plain, err := s.sealer.Open(raw)
	if err != nil {
		return "", false, fmt.Errorf("settings: open %s: %w", key, err)
	}
	return string(plain), true, nil
}

// Value returns the plaintext of key through the cache.
func (s *SettingsService) Value(ctx context.Context, key string) (string, error) {
	v, _, err := s.cache.Get(ctx, key)
	return v, err
}

type SettingView struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Secret    bool      `json:"secret"`
	Set       bool      `json:"set"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func view(k settings.Key, row *domain.Setting) SettingView {
	v := SettingView{Key: k.Name, Secret: k.Secret}
	if row == nil {
		return v
	}
	v.Set = true
	v.UpdatedBy = row.UpdatedBy
	v.UpdatedAt = row.UpdatedAt
	if k.Secret {
		if row.Value != "" {
			v.Value = settings.Mask
		}
	} else {
		v.Value = row.Value
	}
	return v
}

func (s *SettingsService) Get(ctx context.Context, actor policy.Actor, key string) (SettingView, error) {
	if !actor.Can(policy.SettingsManage) {
		return SettingView{}, ErrForbidden
	}
	k, ok := settings.Lookup(key)
	if !ok {
		return SettingView{}, ErrUnknownSetting
	}
	row, err := s.store.Settings().GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return view(k, nil), nil
		}
		return SettingView{}, err
	}
	return view(k, &row), nil
}

// List returns every known key, set or not, in name order.
func (s *SettingsService) List(ctx context.Context, actor policy.Actor) ([]SettingView, error) {
	if !actor.Can(policy.SettingsManage) {
		return nil, ErrForbidden
	}
	rows, err := s.store.Settings().ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*domain.Setting, len(rows))
	for i := range rows {
		byKey[rows[i].Key] = &rows[i]
	}

	out := make([]SettingView, 0, len(settings.Keys()))
	for _, name := range settings.Keys() {
		k, _ := settings.Lookup(name)
		out = append(out, view(k, byKey[name]))
	}
	return out, nil
}

// Set validates and persists key, sealing secrets, then drops the cached
// value so the next read sees the change.
func (s *SettingsService) Set(ctx context.Context, actor policy.Actor, key, value string) (SettingView, error) {
	if !actor.Can(policy.SettingsManage) {
		return SettingView{}, ErrForbidden
	}
	k, ok := settings.Lookup(key)
	if !ok {
		return SettingView{}, ErrUnknownSetting
	}
	if len(value) > maxSettingLength {
		return SettingView{}, invalid("value is too long")
	}
	if err := validateSetting(key, value); err != nil {
		return SettingView{}, err
	}

	stored := value
	if k.Secret && value != "" {
		sealed, err := s.sealer.Seal([]byte(value))
		if err != nil {
			return SettingView{}, err
		}
		stored = base64.StdEncoding.EncodeToString(sealed)
	}

	row := domain.Setting{
		Key:       key,
		Value:     stored,
		Secret:    k.Secret,
		UpdatedBy: actor.UserID,
		UpdatedAt: s.now.now(),
	}
	if err := s.store.Settings().PutSetting(ctx, row); err != nil {
		return SettingView{}, err
	}
	s.cache.Invalidate(key)

	slogx.FromContext(ctx).Info("setting updated",
		slog.String("key", key),
		slog.String("by", actor.UserID),
	)
	return view(k, &row), nil
}

func validateSetting(key, value string) error {
	if value == "" {
		return nil
	}
	switch key {
	case settings.SMTPPort:
		p, err := strconv.Atoi(value)
		if err != nil || p < 1 || p > 65535 {
			return invalid("smtp.port must be a port number")
		}
	case settings.SMTPFrom, settings.FirmNotifyTo:
		if _, err := validEmail(value); err != nil {
			return invalid("%s must be an email address", key)
		}
	}
	return nil
}

// SMTPConfig implements mail.ConfigSource.
func (s *SettingsService) SMTPConfig(ctx context.Context) (domain.SMTPConfig, error) {
	var (
		cfg  domain.SMTPConfig
		port string
	)
	for key, dst := range map[string]*string{
		settings.SMTPHost:     &cfg.Host,
		settings.SMTPPort:     &port,
		settings.SMTPUsername: &cfg.Username,
		settings.SMTPPassword: &cfg.Password,
		settings.SMTPFrom:     &cfg.From,
		settings.FirmNotifyTo: &cfg.NotifyTo,
	} {
		v, err := s.Value(ctx, key)
		if err != nil {
			return domain.SMTPConfig{}, err
		}
		*dst = v
	}
	if port != "" {
		cfg.Port, _ = strconv.Atoi(port)
	}
	return cfg, nil
}

// NotifyAddress implements Inbox.
func (s *SettingsService) NotifyAddress(ctx context.Context) (string, error) {
	return s.Value(ctx, settings.FirmNotifyTo)
}
