package service

import (
	"bytes"
	"context"
	"testing"
	"strings"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func seedTool(t *testing.T, e *testEnv) domain.Tool {
	t.Helper()
	tool, err := e.leads.CreateTool(context.Background(), rootActor, "cashflow-template", "Cash flow template", bytes.NewReader(pdfBody))
	require.NoError(t, err)
	return tool
}

func codeFor(t *testing.T, ch domain.OTPChallenge) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(ch.Secret, ch.IssuedAt, otpOpts)
	require.NoError(t, err)
	return code
}

func TestCreateTool(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	staff := e.user(t, domain.RoleStaff)

	_, err := e.leads.CreateTool(ctx, actorOf(staff), "x", "X", bytes.NewReader(pdfBody))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.leads.CreateTool(ctx, rootActor, "Bad Slug", "X", bytes.NewReader(pdfBody))
	require.ErrorIs(t, err, ErrInvalidInput)

	seedTool(t, e)
	_, err = e.leads.CreateTool(ctx, rootActor, "cashflow-template", "again", bytes.NewReader(pdfBody))
	require.ErrorIs(t, err, ErrToolExists)

	tools, err := e.leads.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "application/pdf", tools[0].MIMEType)
}

func TestLeadOTPFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedTool(t, e)

	ch, err := e.leads.RequestCode(ctx, "Prospect@Example.com", "Pat", "cashflow-template")
	require.NoError(t, err)
	require.Equal(t, envStart.Add(OTPLifetime), ch.ExpiresAt)

	emails := e.queue.emails()
	require.Len(t, emails, 1)
	require.Equal(t, []string{"prospect@example.com"}, emails[0].To)
	require.Contains(t, emails[0].Body, codeFor(t, ch))

	e.clock.Advance(2 * time.Minute)
	grant, err := e.leads.VerifyCode(ctx, ch.ID, codeFor(t, ch))
	require.NoError(t, err)
	require.NotEmpty(t, grant.Token)

	lead, err := e.store.Leads().GetLead(ctx, ch.LeadID)
	require.NoError(t, err)
	require.NotNil(t, lead.VerifiedAt)

	_, err = e.leads.VerifyCode(ctx, ch.ID, codeFor(t, ch))
	require.ErrorIs(t, err, ErrChallengeExpired, "a verified challenge cannot be reused")

	tool, data, err := e.leads.RedeemDownload(ctx, grant.Token)
	require.NoError(t, err)
	require.Equal(t, "cashflow-template", tool.Slug)
	require.Equal(t, pdfBody, data)

	_, _, err = e.leads.RedeemDownload(ctx, grant.Token)
	require.ErrorIs(t, err, ErrGrantInvalid, "grants are single use")
}

func TestLeadUpsert(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedTool(t, e)

	a, err := e.leads.RequestCode(ctx, "pat@example.com", "Pat", "cashflow-template")
	require.NoError(t, err)
	b, err := e.leads.RequestCode(ctx, "pat@example.com", "Patricia", "cashflow-template")
	require.NoError(t, err)
	require.Equal(t, a.LeadID, b.LeadID)
	require.NotEqual(t, a.ID, b.ID)

	leads, err := e.leads.ListLeads(ctx, rootActor, 10, 0)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	require.Equal(t, "Patricia", leads[0].Name)
}

func TestVerifyCodeFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedTool(t, e)

	_, err := e.leads.RequestCode(ctx, "pat@example.com", "", "no-such-tool")
	require.ErrorIs(t, err, ErrToolNotFound)

	_, err = e.leads.VerifyCode(ctx, "missing", "123456")
	require.ErrorIs(t, err, ErrChallengeNotFound)

	t.Run("attempt cap", func(t *testing.T) {
		ch, err := e.leads.RequestCode(ctx, "cap@example.com", "", "cashflow-template")
		require.NoError(t, err)
		wrong := "000000"
		if codeFor(t, ch) == wrong {
			wrong = "111111"
		}
		for i := 1; i < MaxOTPAttempts; i++ {
			_, err := e.leads.VerifyCode(ctx, ch.ID, wrong)
			require.ErrorIs(t, err, ErrInvalidCode)
		}
		_, err = e.leads.VerifyCode(ctx, ch.ID, wrong)
		require.ErrorIs(t, err, ErrTooManyAttempts)
		_, err = e.leads.VerifyCode(ctx, ch.ID, codeFor(t, ch))
		require.ErrorIs(t, err, ErrTooManyAttempts, "right code after the cap is still refused")
	})

	t.Run("expiry", func(t *testing.T) {
		ch, err := e.leads.RequestCode(ctx, "late@example.com", "", "cashflow-template")
		require.NoError(t, err)
		e.clock.Advance(OTPLifetime)
		_, err = e.leads.VerifyCode(ctx, ch.ID, codeFor(t, ch))
		require.ErrorIs(t, err, ErrChallengeExpired)
	})
}

func TestGrantExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedTool(t, e)

	ch, err := e.leads.RequestCode(ctx, "pat@example.com", "", "cashflow-template")
	require.NoError(t, err)
	grant, err := e.leads.VerifyCode(ctx, ch.ID, codeFor(t, ch))
	require.NoError(t, err)

	e.clock.Advance(GrantTTL + time.Second)
	_, _, err = e.leads.RedeemDownload(ctx, grant.Token)
	require.ErrorIs(t, err, ErrGrantInvalid)
}

func TestOTPSecretSealedAtRest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedTool(t, e)

	ch, err := e.leads.RequestCode(ctx, "prospect@example.com", "", "cashflow-template")
	require.NoError(t, err)

	stored, err := e.store.OTPChallenges().GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	require.NotEqual(t, ch.Secret, stored.Secret)
	require.True(t, strings.HasPrefix(stored.Secret, sealedSecretPrefix))
	require.NotContains(t, stored.Secret, ch.Secret)

	_, err = e.leads.VerifyCode(ctx, ch.ID, codeFor(t, ch))
	require.NoError(t, err)
}

func TestOTPSecretWithoutKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedTool(t, e)
	e.leads.Sealer = cryptox.NewSealer(nil)

	ch, err := e.leads.RequestCode(ctx, "prospect@example.com", "", "cashflow-template")
	require.NoError(t, err)

	stored, err := e.store.OTPChallenges().GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	require.Equal(t, ch.Secret, stored.Secret)

	_, err = e.leads.VerifyCode(ctx, ch.ID, codeFor(t, ch))
	require.NoError(t, err)
}
