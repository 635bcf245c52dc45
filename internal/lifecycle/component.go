package lifecycle

import "context"

// Component defines the lifecycle interface that all managed components
// must implement. The manager orchestrates startup and shutdown of
// components in dependency order.
type Component interface {
	// Start initializes and starts the component. Must be idempotent.
	Start(ctx context.Context) error

	// Stop gracefully stops the component. Should respect the context
	// deadline for graceful shutdown; an error does not prevent other
	// components from stopping.
	Stop(ctx context.Context) error

	// Name returns the human-readable name of the component.
	Name() string
}
