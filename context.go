package tenantauth

import "context"

type clientIPContextKey struct{}
type securityContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine uses
// it for registration throttling and audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// ContextWithSecurity attaches an authorized [SecurityContext] to ctx.
// The HTTP middleware calls this after [Engine.Authorize] succeeds;
// handlers read it back with [SecurityFromContext].
func ContextWithSecurity(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityFromContext returns the [SecurityContext] placed on ctx by
// the authorization layer, or nil when the request never passed the
// gate.
func SecurityFromContext(ctx context.Context) *SecurityContext {
	if ctx == nil {
		return nil
	}

	sc, _ := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc
}
