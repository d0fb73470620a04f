package pool

import "context"

// Connector opens a new backing Session on demand. A Pool calls Open only
// while its monitor is held, so implementations should not assume they run
// concurrently with each other.
type Connector interface {
	Open(ctx context.Context) (Session, error)
}

// ConnectorFunc adapts a plain function to a Connector.
type ConnectorFunc func(ctx context.Context) (Session, error)

// Open implements Connector.
func (f ConnectorFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}
