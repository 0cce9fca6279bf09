package goals

import "context"

// Service is the remote goal store the detail screen talks to. The server
// applies the same canonical status/progress mapping and returns the
// authoritative pair from UpdateGoal.
type Service interface {
	GetGoal(ctx context.Context, id int64) (Goal, error)
	UpdateGoal(ctx context.Context, id int64, patch Patch) (Goal, error)
	DeleteGoal(ctx context.Context, id int64) error
}

type idempotencyKey struct{}

// WithIdempotencyKey tags a mutation so a repeated send with the same key is
// applied once by the server.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKey returns the key set by WithIdempotencyKey, if any.
func IdempotencyKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey{}).(string)
	return key, ok && key != ""
}
