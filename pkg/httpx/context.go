package httpx

import "context"

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// How a principal authenticated.
const (
	ViaBearer  = "bearer"
	ViaSession = "session"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID string
	Email  string
	Role   string
	Family string // refresh family for bearer callers
	Via    string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFromContext returns the caller, if the request was authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}
