package middlewares

import (
	"context"

	"github.com/dropDatabas3/portero/internal/http/services/oauth"
)

type ctxKey string

const (
	ctxAuthKey      ctxKey = "auth"
	ctxRequestIDKey ctxKey = "request_id"
	ctxReqInfoKey   ctxKey = "request_info"
)

// WithAuth inyecta el contexto de autenticación validado.
func WithAuth(ctx context.Context, ac *oauth.AuthContext) context.Context {
	return context.WithValue(ctx, ctxAuthKey, ac)
}

// GetAuth retorna el contexto de autenticación o nil si el request no pasó
// por RequireAuth.
func GetAuth(ctx context.Context) *oauth.AuthContext {
	ac, _ := ctx.Value(ctxAuthKey).(*oauth.AuthContext)
	return ac
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}

// requestInfo lo crea WithRequestLog y lo completan los middlewares
// internos (auth, rate) para que el log final tenga cliente y resultado.
type requestInfo struct {
	clientID    string // id interno
	publicID    string
	tenantID    string
	rateLimited bool
	errMsg      string
}

func getRequestInfo(ctx context.Context) *requestInfo {
	ri, _ := ctx.Value(ctxReqInfoKey).(*requestInfo)
	return ri
}

func ensureRequestInfo(ctx context.Context) (context.Context, *requestInfo) {
	if ri := getRequestInfo(ctx); ri != nil {
		return ctx, ri
	}
	ri := &requestInfo{}
	return context.WithValue(ctx, ctxReqInfoKey, ri), ri
}

func markAuthenticated(ctx context.Context, ac *oauth.AuthContext) {
	if ri := getRequestInfo(ctx); ri != nil {
		ri.clientID = ac.Client.ID
		ri.publicID = ac.Client.ClientID
		ri.tenantID = ac.Tenant.ID
	}
}

func markRateLimited(ctx context.Context) {
	if ri := getRequestInfo(ctx); ri != nil {
		ri.rateLimited = true
		ri.errMsg = "rate limit exceeded"
	}
}

func markError(ctx context.Context, msg string) {
	if ri := getRequestInfo(ctx); ri != nil && ri.errMsg == "" {
		ri.errMsg = msg
	}
}
