package resolver

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const lookupTimeout = 10 * time.Second

// Handler receives the resolved endpoints of a name. On failure the address list is empty.
type Handler func(name string, addrs []string)

// LookupFunc resolves a host name into addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

type request struct {
	names   []string
	handler Handler
}

// Resolver resolves peer host names in the background, one batch at a time.
type Resolver struct {
	log    zerolog.Logger
	lookup LookupFunc

	started *atomic.Bool
	queue   chan request

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a resolver using the given lookup, or the system resolver if lookup is nil.
func New(log zerolog.Logger, lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		log:     log.With().Str("component", "resolver").Logger(),
		lookup:  lookup,
		started: atomic.NewBool(false),
		queue:   make(chan request, 64),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start launches the resolution routine. Subsequent calls are no-ops.
func (r *Resolver) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.loop()
}

// Resolve queues a batch of names of the form "host", "host:port" or "host port". It returns
// false if the resolver is stopping or its queue is full.
func (r *Resolver) Resolve(names []string, handler Handler) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.queue <- request{names: names, handler: handler}:
		return true
	default:
		r.log.Warn().Int("names", len(names)).Msg("resolver queue full, batch dropped")
		return false
	}
}

func (r *Resolver) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case req := <-r.queue:
			for _, name := range req.names {
				if r.ctx.Err() != nil {
					return
				}
				req.handler(name, r.resolve(name))
			}
		}
	}
}

func (r *Resolver) resolve(name string) []string {
	host, port := splitName(name)
	if host == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(r.ctx, lookupTimeout)
	defer cancel()

	addrs, err := r.lookup(ctx, host)
	if err != nil {
		r.log.Debug().Err(err).Str("name", name).Msg("could not resolve name")
		return nil
	}
	if port == "" {
		return addrs
	}
	endpoints := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		endpoints = append(endpoints, net.JoinHostPort(addr, port))
	}
	return endpoints
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if host, port, err := net.SplitHostPort(name); err == nil {
		return host, port
	}
	if fields := strings.Fields(name); len(fields) == 2 {
		return fields[0], fields[1]
	}
	return name, ""
}

// StopAsync asks the resolver to stop. Queued batches are abandoned.
func (r *Resolver) StopAsync() {
	r.stopOnce.Do(r.cancel)
}

// Stop stops the resolver and waits for the resolution routine to exit.
func (r *Resolver) Stop() {
	r.StopAsync()
	if r.started.Load() {
		<-r.done
	}
}
