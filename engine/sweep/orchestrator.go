package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/module"
)

// Step names, in the order the steps run.
const (
	StepFullBelowCache   = "fullbelow_cache"
	StepMasterTx         = "master_transactions"
	StepNodeStore        = "node_store"
	StepLedgerMaster     = "ledger_master"
	StepTempNodeCache    = "temp_node_cache"
	StepValidations      = "validations"
	StepInboundLedgers   = "inbound_ledgers"
	StepAcceptedLedgers  = "accepted_ledgers"
	StepTreeNodeCache    = "tree_node_cache"
	StepCachedLedgerSLEs = "cached_entries"
)

// Targets are the subsystems swept on every pass.
type Targets struct {
	FullBelowCache  module.Sweepable
	MasterTx        module.Sweepable
	NodeStore       module.Sweepable
	LedgerMaster    module.Sweepable
	TempNodeCache   module.Sweepable
	Validations     module.Sweepable
	InboundLedgers  module.Sweepable
	AcceptedLedgers module.Sweepable
	TreeNodeCache   module.Sweepable
	CachedEntries   module.Sweepable
}

type step struct {
	name   string
	target module.Sweepable
}

// Orchestrator runs one maintenance pass over all caches of the node. Every step is isolated:
// a panicking step is reported and the pass continues with the next one.
type Orchestrator struct {
	log     zerolog.Logger
	metrics module.SweepMetrics
	steps   []step
}

// NewOrchestrator orders the targets canonically. Nil targets are skipped.
func NewOrchestrator(log zerolog.Logger, collector module.SweepMetrics, targets Targets) *Orchestrator {
	ordered := []step{
		{StepFullBelowCache, targets.FullBelowCache},
		{StepMasterTx, targets.MasterTx},
		{StepNodeStore, targets.NodeStore},
		{StepLedgerMaster, targets.LedgerMaster},
		{StepTempNodeCache, targets.TempNodeCache},
		{StepValidations, targets.Validations},
		{StepInboundLedgers, targets.InboundLedgers},
		{StepAcceptedLedgers, targets.AcceptedLedgers},
		{StepTreeNodeCache, targets.TreeNodeCache},
		{StepCachedLedgerSLEs, targets.CachedEntries},
	}

	steps := make([]step, 0, len(ordered))
	for _, s := range ordered {
		if s.target != nil {
			steps = append(steps, s)
		}
	}

	return &Orchestrator{
		log:     log.With().Str("component", "sweep").Logger(),
		metrics: collector,
		steps:   steps,
	}
}

// Steps returns the names of the configured steps in execution order.
func (o *Orchestrator) Steps() []string {
	names := make([]string, 0, len(o.steps))
	for _, s := range o.steps {
		names = append(names, s.name)
	}
	return names
}

// Sweep runs every step once. It returns the failures of all steps. A cancelled context stops
// the pass before the next step.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	start := time.Now()
	var result *multierror.Error

	for _, s := range o.steps {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, fmt.Errorf("sweep interrupted before %s: %w", s.name, err))
			break
		}

		stepStart := time.Now()
		err := o.run(s)
		o.metrics.SweepStepDuration(s.name, time.Since(stepStart))
		if err != nil {
			o.metrics.SweepStepFailed(s.name)
			o.log.Error().Err(err).Str("step", s.name).Msg("sweep step failed")
			result = multierror.Append(result, err)
		}
	}

	duration := time.Since(start)
	o.metrics.SweepCompleted(duration)
	o.log.Debug().Dur("duration", duration).Int("steps", len(o.steps)).Msg("sweep completed")
	return result.ErrorOrNil()
}

func (o *Orchestrator) run(s step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep step %s panicked: %v", s.name, r)
		}
	}()
	s.target.Sweep()
	return nil
}
