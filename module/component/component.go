package component

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/irrecoverable"
	"github.com/vbc-network/vbcd/module/util"
)

// ErrComponentShutdown is returned by a component which has already been shut down.
var ErrComponentShutdown = errors.New("component has already shut down")

// Component can be started once and exposes channels that close when startup and shutdown
// have completed. Once started, Done must close eventually, either after a graceful shutdown
// or after an irrecoverable error.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called by a worker once it is ready.
type ReadyFunc func()

// ComponentWorker is a long running routine of a component. It must return once ctx is
// cancelled and reports fatal errors through ctx.Throw.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

type namedWorker struct {
	name string
	run  ComponentWorker
}

// ComponentManagerBuilder collects the workers of a ComponentManager.
type ComponentManagerBuilder struct {
	workers []namedWorker
}

func NewComponentManagerBuilder() *ComponentManagerBuilder {
	return &ComponentManagerBuilder{}
}

// AddWorker registers a worker under a name used in shutdown diagnostics. All workers run in
// parallel once the manager is started. AddWorker is not concurrency-safe.
func (b *ComponentManagerBuilder) AddWorker(name string, worker ComponentWorker) *ComponentManagerBuilder {
	b.workers = append(b.workers, namedWorker{name: name, run: worker})
	return b
}

func (b *ComponentManagerBuilder) Build() *ComponentManager {
	return &ComponentManager{
		started:        atomic.NewBool(false),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		workersDone:    make(chan struct{}),
		shutdownSignal: make(chan struct{}),
		workers:        b.workers,
		running:        make(map[string]int),
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager runs the workers of a component. Ready closes once every worker called
// its ReadyFunc and Done once every worker returned. Cancelling the context passed to Start
// shuts the workers down. The first irrecoverable error cancels the remaining workers and
// is thrown to the parent context.
type ComponentManager struct {
	started        *atomic.Bool
	ready          chan struct{}
	done           chan struct{}
	workersDone    chan struct{}
	shutdownSignal chan struct{}

	workers []namedWorker

	mu      sync.Mutex
	running map[string]int
}

// Start launches all workers. It panics when called a second time.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		<-ctx.Done()
		close(c.shutdownSignal)
	}()

	// done closes only after every worker returned, so the parent sees a thrown error first
	go func() {
		defer func() {
			<-c.workersDone
			close(c.done)
		}()
		workersDoneCtx, doneCancel := util.WithDone(context.Background(), c.workersDone)
		defer doneCancel()
		err := util.WaitError(workersDoneCtx, errChan)
		if err != nil {
			cancel()
			parent.Throw(err)
		}
	}()

	var ready, finished sync.WaitGroup
	ready.Add(len(c.workers))
	finished.Add(len(c.workers))

	c.mu.Lock()
	for _, w := range c.workers {
		c.running[w.name]++
	}
	c.mu.Unlock()

	for _, w := range c.workers {
		w := w
		go func() {
			defer finished.Done()
			defer c.exited(w.name)
			var once sync.Once
			w.run(signalerCtx, func() {
				once.Do(ready.Done)
			})
		}()
	}

	go func() {
		ready.Wait()
		close(c.ready)
	}()
	go func() {
		finished.Wait()
		close(c.workersDone)
	}()
}

func (c *ComponentManager) exited(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[name]--
	if c.running[name] <= 0 {
		delete(c.running, name)
	}
}

// Pending returns the sorted names of the workers which have not returned yet.
func (c *ComponentManager) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.running))
	for name := range c.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ready closes once every worker is ready. It never closes if a worker returns before
// calling its ReadyFunc.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

// Done closes once every worker returned.
func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}

// ShutdownSignal closes once shutdown has commenced.
func (c *ComponentManager) ShutdownSignal() <-chan struct{} {
	return c.shutdownSignal
}
