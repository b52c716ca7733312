package auth

import "context"

type subjectKey struct{}

// WithSubject stamps the authenticated user id onto the request context.
// The JWT middleware is the only writer; handlers read it back to scope
// queries to the caller.
func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// SubjectFromContext returns the authenticated user id, or "" when the
// request never went through the JWT middleware.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}
