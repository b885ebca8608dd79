package auth

import "context"

// ClientIPHeader carries the browser address on calls the admin relays to the identity backend.
// The backend honours it only on loopback connections.
const ClientIPHeader = "X-Odyssey-Client-IP"

type clientIPKey struct{}

// WithClientIP attaches the browser address that backend calls made with ctx act for.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
