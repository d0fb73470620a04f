package pool

import "context"

// IsolationPolicy enforces a transaction-isolation level on a session
// before it is handed to a consumer. A Pool constructed without one leaves
// each session's isolation level untouched.
type IsolationPolicy interface {
	Apply(ctx context.Context, session Session) error
}

// StaticIsolationPolicy asserts the same isolation level on every handout,
// skipping the underlying driver call when the session already reports
// that level.
type StaticIsolationPolicy struct {
	Level IsolationLevel
}

// Apply implements IsolationPolicy.
func (p StaticIsolationPolicy) Apply(ctx context.Context, session Session) error {
	current, err := session.IsolationLevel(ctx)
	if err != nil {
		return err
	}
	if current == p.Level {
		return nil
	}
	return session.SetIsolationLevel(ctx, p.Level)
}
