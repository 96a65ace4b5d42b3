package cmd

import (
	"os"
	"os/signal"
	"syscall"
)

// listenSignals stops the node on SIGINT or SIGTERM. The listener is torn down once the node
// is stopping; a closed delivery channel is ignored.
func (n *LedgerNode) listenSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go n.awaitSignal(signals)
}

func (n *LedgerNode) awaitSignal(signals chan os.Signal) {
	defer signal.Stop(signals)
	select {
	case sig, ok := <-signals:
		if !ok {
			return
		}
		n.log.Info().Str("signal", sig.String()).Msg("received signal")
		n.SignalStop()
	case <-n.stop:
	}
}
