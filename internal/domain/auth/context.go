package auth

import "context"

// stateKey is an unexported context key type to avoid collisions across packages.
type stateKey struct{}

// NewContext returns a child context carrying the given auth state.
func NewContext(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// FromContext returns the auth state stored in ctx and whether one was present.
// A missing state reads as Anonymous.
func FromContext(ctx context.Context) (State, bool) {
	st, ok := ctx.Value(stateKey{}).(State)
	return st, ok
}
