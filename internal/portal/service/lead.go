package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// MaxOTPAttempts is the number of codes a challenge accepts before it
	// is burned.
	MaxOTPAttempts = 5

	OTPPeriod   = 600 * time.Second
	OTPLifetime = 10 * time.Minute
	GrantTTL    = 15 * time.Minute

	maxToolBytes = 50 << 20

	sealedSecretPrefix = "sealed:"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

var otpOpts = totp.ValidateOpts{
	Period:    uint(OTPPeriod / time.Second),
	Skew:      0,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// LeadService gates tool downloads behind an emailed one-time code. OTP
// secrets are stored sealed when Sealer is configured.
type LeadService struct {
	Store  store.Store
	Blobs  blob.Store
	Sealer *cryptox.Sealer
	Tasks  Enqueuer
	Issuer string
	Now    func() time.Time
}

func (s *LeadService) CreateTool(ctx context.Context, actor policy.Actor, slug, title string, asset io.Reader) (domain.Tool, error) {
	if !actor.Can(policy.SettingsManage) {
		return domain.Tool{}, ErrForbidden
	}
	if !slugPattern.MatchString(slug) {
		return domain.Tool{}, invalid("slug must be lower-case letters, digits and dashes")
	}
	title, err := requireText("title", title, 200)
	if err != nil {
		return domain.Tool{}, err
	}
	if asset == nil {
		return domain.Tool{}, invalid("file is required")
	}
	data, err := io.ReadAll(io.LimitReader(asset, maxToolBytes+1))
	if err != nil {
		return domain.Tool{}, err
	}
	if len(data) > maxToolBytes {
		return domain.Tool{}, ErrUploadTooLarge
	}
	if len(data) == 0 {
		return domain.Tool{}, invalid("file is empty")
	}

	t := domain.Tool{
		ID:        idx.NewString(),
		Slug:      slug,
		Title:     title,
		BlobKey:   fmt.Sprintf("tools/%s/%s", slug, uuid.NewString()),
		MIMEType:  mimetype.Detect(data).String(),
		Active:    true,
		CreatedAt: clock(s.Now).now(),
	}
	if err := s.Blobs.Put(ctx, t.BlobKey, data); err != nil {
		return domain.Tool{}, err
	}
	if err := s.Store.Tools().CreateTool(ctx, t); err != nil {
		_ = s.Blobs.Delete(ctx, t.BlobKey)
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Tool{}, ErrToolExists
		}
		return domain.Tool{}, err
	}

	slogx.FromContext(ctx).Info("tool created", slog.String("slug", slug), slog.String("by", actor.UserID))
	return t, nil
}

func (s *LeadService) ListTools(ctx context.Context) ([]domain.Tool, error) {
	return s.Store.Tools().ListTools(ctx, true)
}

// RequestCode records the lead and emails a code for toolSlug. The
// returned challenge id is what the client sends back with the code.
func (s *LeadService) RequestCode(ctx context.Context, email, name, toolSlug string) (domain.OTPChallenge, error) {
	l := slogx.FromContext(ctx)

	email, err := validEmail(email)
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	if name, err = optionalText("name", name, 120); err != nil {
		return domain.OTPChallenge{}, err
	}
	tool, err := s.Store.Tools().GetToolBySlug(ctx, toolSlug)
	if err != nil || !tool.Active {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return domain.OTPChallenge{}, ErrToolNotFound
		}
		return domain.OTPChallenge{}, err
	}

	now := clock(s.Now).now()

	// 1. Upsert the lead
	lead, err := s.upsertLead(ctx, email, name, tool.Slug, now)
	if err != nil {
		return domain.OTPChallenge{}, err
	}

	// 2. Create the challenge
	issuer := s.Issuer
	if issuer == "" {
		issuer = "ledgerdesk"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: email,
		Period:      otpOpts.Period,
		Digits:      otpOpts.Digits,
		Algorithm:   otpOpts.Algorithm,
	})
	if err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("generate otp secret: %w", err)
	}
	code, err := totp.GenerateCodeCustom(key.Secret(), now, otpOpts)
	if err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("generate otp code: %w", err)
	}

	ch := domain.OTPChallenge{
		ID:        idx.NewString(),
		LeadID:    lead.ID,
		ToolSlug:  tool.Slug,
		Secret:    key.Secret(),
		IssuedAt:  now,
		ExpiresAt: now.Add(OTPLifetime),
	}
	stored := ch
	if stored.Secret, err = s.sealSecret(ch.Secret); err != nil {
		return domain.OTPChallenge{}, err
	}
	if err := s.Store.OTPChallenges().CreateChallenge(ctx, stored); err != nil {
		return domain.OTPChallenge{}, err
	}

	// 3. Email the code
	sendEmail(ctx, s.Tasks, tasks.Email{
		To:      []string{email},
		Subject: "Your download code for " + tool.Title,
		Body: fmt.Sprintf("Your code is %s\n\nIt expires in %d minutes. If you did not request it you can ignore this email.\n",
			code, int(OTPLifetime/time.Minute)),
	})

	l.Info("otp challenge issued", slog.String("challenge_id", ch.ID), slog.String("tool", tool.Slug))
	return ch, nil
}

func (s *LeadService) sealSecret(secret string) (string, error) {
	if !s.Sealer.Configured() {
		return secret, nil
	}
	sealed, err := s.Sealer.Seal([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("seal otp secret: %w", err)
	}
	return sealedSecretPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// openSecret reverses sealSecret. Values without the prefix were stored
// while no key was configured and are returned as is.
func (s *LeadService) openSecret(stored string) (string, error) {
	enc, ok := strings.CutPrefix(stored, sealedSecretPrefix)
	if !ok {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode otp secret: %w", err)
	}
	plain, err := s.Sealer.Open(raw)
	if err != nil {
		return "", fmt.Errorf("open otp secret: %w", err)
	}
	return string(plain), nil
}

func (s *LeadService) upsertLead(ctx context.Context, email, name, slug string, now time.Time) (domain.Lead, error) {
	lead, err := s.Store.Leads().GetLeadByEmailAndTool(ctx, email, slug)
	if err == nil {
		return lead, s.Store.Leads().TouchLead(ctx, lead.ID, name, now)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Lead{}, err
	}

	lead = domain.Lead{
		ID:        idx.NewString(),
		Email:     email,
		Name:      name,
		ToolSlug:  slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Leads().CreateLead(ctx, lead); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return s.Store.Leads().GetLeadByEmailAndTool(ctx, email, slug)
		}
		return domain.Lead{}, err
	}
	return lead, nil
}

// Grant is the single-use download ticket handed back after a good code.
type Grant struct {
	Token     string
	ToolSlug  string
	ExpiresAt time.Time
}

// VerifyCode checks code against the challenge. The attempt is counted
// before the code is compared so concurrent guesses cannot exceed the cap.
func (s *LeadService) VerifyCode(ctx context.Context, challengeID, code string) (Grant, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now).now()

	ch, err := s.Store.OTPChallenges().GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Grant{}, ErrChallengeNotFound
		}
		return Grant{}, err
	}
	if ch.VerifiedAt != nil || !now.Before(ch.ExpiresAt) {
		return Grant{}, ErrChallengeExpired
	}
	if ch.Attempts >= MaxOTPAttempts {
		return Grant{}, ErrTooManyAttempts
	}

	n, err := s.Store.OTPChallenges().IncrementAttempts(ctx, ch.ID)
	if err != nil {
		return Grant{}, err
	}
	if n > MaxOTPAttempts {
		return Grant{}, ErrTooManyAttempts
	}

	secret, err := s.openSecret(ch.Secret)
	if err != nil {
		l.Error("otp secret unreadable", slog.String("challenge_id", ch.ID), slog.Any("error", err))
		return Grant{}, err
	}

	ok, err := totp.ValidateCustom(code, secret, ch.IssuedAt, otpOpts)
	if err != nil || !ok {
		l.Info("otp verification failed", slog.String("challenge_id", ch.ID), slog.Int("attempts", n))
		if n >= MaxOTPAttempts {
			return Grant{}, ErrTooManyAttempts
		}
		return Grant{}, ErrInvalidCode
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return Grant{}, err
	}
	g := domain.DownloadGrant{
		ID:        idx.NewString(),
		LeadID:    ch.LeadID,
		ToolSlug:  ch.ToolSlug,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(GrantTTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.OTPChallenges().MarkChallengeVerified(ctx, ch.ID, now); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrChallengeExpired
			}
			return err
		}
		if err := tx.Leads().MarkLeadVerified(ctx, ch.LeadID, now); err != nil {
			return err
		}
		return tx.DownloadGrants().CreateGrant(ctx, g)
	})
	if err != nil {
		return Grant{}, err
	}

	l.Info("otp verified", slog.String("challenge_id", ch.ID), slog.String("tool", ch.ToolSlug))
	return Grant{Token: token, ToolSlug: g.ToolSlug, ExpiresAt: g.ExpiresAt}, nil
}

// RedeemDownload consumes a grant and returns the tool asset.
func (s *LeadService) RedeemDownload(ctx context.Context, token string) (domain.Tool, []byte, error) {
	if token == "" {
		return domain.Tool{}, nil, ErrGrantInvalid
	}
	g, err := s.Store.DownloadGrants().RedeemGrant(ctx, cryptox.FingerprintToken(token), clock(s.Now).now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			return domain.Tool{}, nil, ErrGrantInvalid
		}
		return domain.Tool{}, nil, err
	}

	tool, err := s.Store.Tools().GetToolBySlug(ctx, g.ToolSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Tool{}, nil, ErrToolNotFound
		}
		return domain.Tool{}, nil, err
	}
	data, err := s.Blobs.Get(ctx, tool.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return domain.Tool{}, nil, ErrToolNotFound
		}
		return domain.Tool{}, nil, err
	}

	slogx.FromContext(ctx).Info("tool downloaded", slog.String("tool", tool.Slug), slog.String("lead_id", g.LeadID))
	return tool, data, nil
}

func (s *LeadService) ListLeads(ctx context.Context, actor policy.Actor, limit, offset int) ([]domain.Lead, error) {
	if !actor.Can(policy.LeadsRead) {
		return nil, ErrForbidden
	}
	return s.Store.Leads().ListLeads(ctx, limit, offset)
}
