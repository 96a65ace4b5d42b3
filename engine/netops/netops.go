package netops

import (
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/ledger"
)

// OperatingMode is the node's relationship with the network.
type OperatingMode int32

const (
	ModeDisconnected OperatingMode = iota
	ModeConnected
	ModeSyncing
	ModeTracking
	ModeFull
)

func (m OperatingMode) String() string {
	switch m {
	case ModeDisconnected:
		return "disconnected"
	case ModeConnected:
		return "connected"
	case ModeSyncing:
		return "syncing"
	case ModeTracking:
		return "tracking"
	case ModeFull:
		return "full"
	default:
		return "unknown"
	}
}

// NetworkOPs holds the node's network facing operating state.
type NetworkOPs struct {
	log zerolog.Logger

	mode              *atomic.Int32
	standAlone        *atomic.Bool
	needNetworkLedger *atomic.Bool
	amendmentBlocked  *atomic.Bool

	mu            sync.Mutex
	lastCloseTime ledger.NetTime
}

func New(log zerolog.Logger) *NetworkOPs {
	return &NetworkOPs{
		log:               log.With().Str("engine", "netops").Logger(),
		mode:              atomic.NewInt32(int32(ModeDisconnected)),
		standAlone:        atomic.NewBool(false),
		needNetworkLedger: atomic.NewBool(false),
		amendmentBlocked:  atomic.NewBool(false),
	}
}

// SetStandAlone puts the node into stand alone operation: it is fully synced by definition
// and never waits for a network ledger.
func (o *NetworkOPs) SetStandAlone() {
	o.standAlone.Store(true)
	o.needNetworkLedger.Store(false)
	o.SetMode(ModeFull)
}

func (o *NetworkOPs) IsStandAlone() bool {
	return o.standAlone.Load()
}

// NeedNetworkLedger records that the node must acquire a ledger from the network before it
// can take part in consensus. It has no effect in stand alone operation.
func (o *NetworkOPs) NeedNetworkLedger() {
	if o.standAlone.Load() {
		return
	}
	if !o.needNetworkLedger.Swap(true) {
		o.log.Info().Msg("waiting for a network ledger")
	}
}

// ClearNeedNetworkLedger is called once a network ledger was acquired.
func (o *NetworkOPs) ClearNeedNetworkLedger() {
	o.needNetworkLedger.Store(false)
}

func (o *NetworkOPs) IsNeedNetworkLedger() bool {
	return o.needNetworkLedger.Load()
}

func (o *NetworkOPs) SetMode(mode OperatingMode) {
	previous := OperatingMode(o.mode.Swap(int32(mode)))
	if previous != mode {
		o.log.Info().Str("from", previous.String()).Str("to", mode.String()).Msg("operating mode changed")
	}
}

func (o *NetworkOPs) Mode() OperatingMode {
	return OperatingMode(o.mode.Load())
}

// SetLastCloseTime records the close time of the last closed ledger.
func (o *NetworkOPs) SetLastCloseTime(t ledger.NetTime) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastCloseTime = t
}

func (o *NetworkOPs) LastCloseTime() ledger.NetTime {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastCloseTime
}

// SetAmendmentBlocked marks the node as unable to follow the network's rules.
func (o *NetworkOPs) SetAmendmentBlocked() {
	if !o.amendmentBlocked.Swap(true) {
		o.log.Error().Msg("server is amendment blocked")
	}
}

func (o *NetworkOPs) IsAmendmentBlocked() bool {
	return o.amendmentBlocked.Load()
}
