package sweeper

import (
	"context"
)

// Sweeper is a long-running background task that keeps stored previews fresh
type Sweeper interface {
	// Start runs the sweep loop until the context is canceled or Stop is called
	Start(ctx context.Context) error

	// Stop signals the loop to exit and waits for in-flight refreshes, bounded by ctx
	Stop(ctx context.Context) error

	// Name identifies the sweeper in logs
	Name() string
}
