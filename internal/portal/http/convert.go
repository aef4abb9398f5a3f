package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

// actor returns the policy actor for the authenticated caller. Routes that
// call it always run behind the authenticator.
func actor(r *http.Request) policy.Actor {
	p, _ := httpx.PrincipalFromContext(r.Context())
	return policy.ActorFromPrincipal(p)
}

// queryInt parses a non-negative integer query parameter, 0 when absent.
func queryInt(r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func toUser(u domain.User) portalsdk.UserResponse {
	return portalsdk.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role.String(),
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

func toTokens(p domain.TokenPair, now time.Time) portalsdk.TokenResponse {
	return portalsdk.TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(p.AccessExpiresAt.Sub(now).Seconds()),
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func toDocument(d domain.Document) portalsdk.DocumentResponse {
	return portalsdk.DocumentResponse{
		ID:           d.ID,
		Title:        d.Title,
		MIMEType:     d.MIMEType,
		OwnerID:      d.OwnerID,
		UploaderRole: d.UploaderRole.String(),
		SizeBytes:    d.SizeBytes,
		Category:     d.Category,
		FolderID:     d.FolderID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func toFolder(f domain.Folder) portalsdk.FolderResponse {
	return portalsdk.FolderResponse{ID: f.ID, OwnerID: f.OwnerID, Name: f.Name, CreatedAt: f.CreatedAt}
}

func toTool(t domain.Tool) portalsdk.ToolResponse {
	return portalsdk.ToolResponse{Slug: t.Slug, Title: t.Title, MIMEType: t.MIMEType}
}

func toLead(l domain.Lead) portalsdk.LeadResponse {
	return portalsdk.LeadResponse{
		ID:         l.ID,
		Email:      l.Email,
		Name:       l.Name,
		Tool:       l.ToolSlug,
		VerifiedAt: l.VerifiedAt,
		CreatedAt:  l.CreatedAt,
	}
}

func toAppointment(a domain.Appointment) portalsdk.AppointmentResponse {
	return portalsdk.AppointmentResponse{
		ID:       a.ID,
		Name:     a.Name,
		Email:    a.Email,
		StartsAt: a.StartsAt,
		EndsAt:   a.EndsAt,
		Status:   string(a.Status),
	}
}

func toEnquiry(e domain.Enquiry) portalsdk.EnquiryResponse {
	return portalsdk.EnquiryResponse{
		ID:        e.ID,
		Name:      e.Name,
		Email:     e.Email,
		Phone:     e.Phone,
		Subject:   e.Subject,
		Message:   e.Message,
		HandledAt: e.HandledAt,
		HandledBy: e.HandledBy,
		CreatedAt: e.CreatedAt,
	}
}

func toSetting(v service.SettingView) portalsdk.SettingResponse {
	out := portalsdk.SettingResponse{
		Key:       v.Key,
		Value:     v.Value,
		Secret:    v.Secret,
		Set:       v.Set,
		UpdatedBy: v.UpdatedBy,
	}
	if !v.UpdatedAt.IsZero() {
		at := v.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}
