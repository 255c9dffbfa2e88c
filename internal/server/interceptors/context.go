package interceptors

import "context"

type contextKey struct{ name string }

var (
	sessionIDKey  = contextKey{"session_id"}
	sellerTypeKey = contextKey{"seller_type"}
)

// WithSession returns a context carrying the registration session the caller's token is bound to.
// Handlers read it via GetSessionID and GetSellerType.
func WithSession(ctx context.Context, sessionID, sellerType string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	ctx = context.WithValue(ctx, sellerTypeKey, sellerType)
	return ctx
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok && v != ""
}

// GetSellerType returns the seller_type from context and true if set; otherwise "", false.
func GetSellerType(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sellerTypeKey).(string)
	return v, ok && v != ""
}
