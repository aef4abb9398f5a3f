// Package policy is the single place that decides what a role may do.
// Handlers and services ask Can instead of comparing roles themselves.
package policy

import (
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
)

type Capability string

const (
	DocumentsReadAny   Capability = "documents:read_any"
	DocumentsWriteAny  Capability = "documents:write_any"
	DocumentsUploadOwn Capability = "documents:upload_own"
	DocumentsDelete    Capability = "documents:delete"
	FoldersManage      Capability = "folders:manage"
	UsersManage        Capability = "users:manage"
	SettingsManage     Capability = "settings:manage"
	AppointmentsManage Capability = "appointments:manage"
	EnquiriesRead      Capability = "enquiries:read"
	LeadsRead          Capability = "leads:read"
	MobileAccess       Capability = "mobile:access"
)

var grants = map[domain.Role]map[Capability]struct{}{
	domain.RoleAdmin: set(
		DocumentsReadAny, DocumentsWriteAny, DocumentsUploadOwn, DocumentsDelete,
		FoldersManage, UsersManage, SettingsManage, AppointmentsManage,
		EnquiriesRead, LeadsRead, MobileAccess,
	),
	domain.RoleStaff: set(
		DocumentsReadAny, DocumentsWriteAny, FoldersManage,
		AppointmentsManage, EnquiriesRead, LeadsRead,
	),
	domain.RoleClient: set(
		DocumentsUploadOwn, MobileAccess,
	),
}

func set(caps ...Capability) map[Capability]struct{} {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return m
}

// Can reports whether role holds capability. Unknown roles hold nothing.
func Can(role domain.Role, c Capability) bool {
	_, ok := grants[role][c]
	return ok
}

// Actor is the caller a decision is made for.
type Actor struct {
	UserID string
	Role   domain.Role
}

// ActorFromPrincipal converts an authenticated request principal.
func ActorFromPrincipal(p httpx.Principal) Actor {
	role, _ := domain.ParseRole(p.Role)
	return Actor{UserID: p.UserID, Role: role}
}

func (a Actor) Can(c Capability) bool { return Can(a.Role, c) }

// CanAccessDocument: the owner, or anyone who may read every document.
func CanAccessDocument(a Actor, d domain.Document) bool {
	return a.UserID != "" && (d.OwnerID == a.UserID || a.Can(DocumentsReadAny))
}

// CanDeleteDocument: privileged deletion, or owners removing what they
// uploaded themselves. Clients cannot delete documents the firm issued.
func CanDeleteDocument(a Actor, d domain.Document) bool {
	if a.Can(DocumentsDelete) {
		return true
	}
	return a.UserID != "" && d.OwnerID == a.UserID && d.UploaderRole == domain.RoleClient && d.UploadedBy == a.UserID
}

// CanUploadFor: anyone with write_any, or a user uploading to themselves.
func CanUploadFor(a Actor, ownerID string) bool {
	if a.Can(DocumentsWriteAny) {
		return true
	}
	return a.Can(DocumentsUploadOwn) && ownerID == a.UserID
}

// CanManageFolder: folder managers, or the folder's owner.
func CanManageFolder(a Actor, f domain.Folder) bool {
	return a.Can(FoldersManage) || (a.UserID != "" && f.OwnerID == a.UserID)
}

// Allows adapts a capability to an httpx.Require predicate.
func Allows(c Capability) func(httpx.Principal) bool {
	return func(p httpx.Principal) bool {
		return ActorFromPrincipal(p).Can(c)
	}
}
