package module

import (
	"errors"

	"github.com/vbc-network/vbcd/module/irrecoverable"
)

// ErrMultipleStartup is returned when Start is called more than once on a component.
var ErrMultipleStartup = errors.New("component may only be started once")

// ReadyDoneAware provides easy interface to wait for module startup and shutdown.
// Modules that implement this interface only support a single start-stop cycle,
// and will not restart if Ready() is called again after shutdown has already commenced.
type ReadyDoneAware interface {
	// Ready commences startup of the module, and returns a ready channel that is closed once
	// startup has completed. This is an idempotent method.
	Ready() <-chan struct{}

	// Done commences shutdown of the module, and returns a done channel that is closed once
	// shutdown has completed. This is an idempotent method.
	Done() <-chan struct{}
}

// Startable provides an interface to start a component. Once started, the component
// can be stopped by cancelling the given context.
type Startable interface {
	// Start starts the component. Any irrecoverable errors encountered while the component is running
	// should be thrown with the given SignalerContext.
	// This method should only be called once, and subsequent calls should panic with ErrMultipleStartup.
	Start(irrecoverable.SignalerContext)
}

// Sweepable is implemented by every cache-like subsystem of the node. Sweep evicts expired
// entries and trims the subsystem to its target size.
type Sweepable interface {
	Sweep()
}

// SweepFunc adapts a plain function to the Sweepable interface.
type SweepFunc func()

func (f SweepFunc) Sweep() { f() }
