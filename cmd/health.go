package cmd

import (
	"github.com/vbc-network/vbcd/engine/netops"
	"github.com/vbc-network/vbcd/module/util"
)

// Reasons reported by ServerOkay.
const (
	ReasonShuttingDown     = "Server is shutting down"
	ReasonNeedLedger       = "Not synchronized with network yet"
	ReasonNotSynchronized  = "Not synchronized with network"
	ReasonTooMuchLoad      = "Too much load"
	ReasonAmendmentBlocked = "Server version too old"
)

// ServerOkay reports whether the node should receive traffic from a load balancer, and if not,
// why. Without load balancer support the node always reports healthy.
func (n *LedgerNode) ServerOkay() (bool, string) {
	if !n.elbSupport {
		return true, ""
	}
	if n.state.IsStopping() || util.CheckClosed(n.stop) {
		return false, ReasonShuttingDown
	}
	if n.ops.IsNeedNetworkLedger() {
		return false, ReasonNeedLedger
	}
	if n.ops.Mode() < netops.ModeSyncing {
		return false, ReasonNotSynchronized
	}
	if ok, reason := n.master.IsCaughtUp(); !ok {
		return false, reason
	}
	if n.loadMgr.IsLoadedLocal() {
		return false, ReasonTooMuchLoad
	}
	if n.ops.IsAmendmentBlocked() {
		return false, ReasonAmendmentBlocked
	}
	return true, ""
}
