package middleware

import (
	"context"

	"github.com/technosupport/ts-camstream/internal/data"
)

type contextKey string

const (
	AuthContextKey contextKey = "auth_context"
	CameraKey      contextKey = "camera"
)

// AuthContext holds the authenticated admin's identity
type AuthContext struct {
	Actor   string // email from the token, recorded as the actor in camera history
	TokenID string // jti
}

// GetAuthContext retrieves the AuthContext from the context
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	val, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return val, ok
}

// WithAuthContext attaches the AuthContext to the context
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, auth)
}

// GetCamera retrieves the authenticated device's camera from the context
func GetCamera(ctx context.Context) (*data.Camera, bool) {
	val, ok := ctx.Value(CameraKey).(*data.Camera)
	return val, ok
}

// WithCamera attaches the authenticated camera to the context
func WithCamera(ctx context.Context, cam *data.Camera) context.Context {
	return context.WithValue(ctx, CameraKey, cam)
}
