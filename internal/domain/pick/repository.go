package pick

import "context"

// Store describes pick persistence needs from use cases. Save always receives
// the complete state and must replace what was stored before.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}
