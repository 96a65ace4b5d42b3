package cmd_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/cmd"
	"github.com/vbc-network/vbcd/config"
	"github.com/vbc-network/vbcd/ledger/bootstrap"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module/events"
	"github.com/vbc-network/vbcd/module/lifecycle"
	"github.com/vbc-network/vbcd/utils/unittest"
)

func testConfig(t *testing.T, dir string) *config.Config {
	cfg := config.Defaults()
	cfg.DatabasePath = dir
	cfg.NodeDBBackend = "memory"
	cfg.NodeSize = "tiny"
	cfg.StartUp = config.StartUpFresh
	cfg.StandAlone = true
	require.NoError(t, cfg.Validate())
	return &cfg
}

func builder(cfg *config.Config, options ...cmd.BuilderOption) *cmd.NodeBuilder {
	defaults := []cmd.BuilderOption{
		cmd.WithLogger(unittest.Logger()),
		cmd.WithDiskProbe(func(string) (uint64, error) { return 1 << 30, nil }),
		cmd.WithLookup(func(context.Context, string) ([]string, error) { return nil, nil }),
	}
	return cmd.NewNodeBuilder(cfg, append(defaults, options...)...)
}

func TestSetup_FreshRunAndStop(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		bus := events.NewBus()
		shutdowns := atomic.NewInt32(0)
		bus.Subscribe(events.TopicShutdown, "counter", func(context.Context) error {
			shutdowns.Inc()
			return nil
		})

		node, err := builder(testConfig(t, dir), cmd.WithEventBus(bus)).Setup(context.Background())
		require.NoError(t, err)
		require.NotNil(t, node.Ledger())
		assert.EqualValues(t, 2, node.Ledger().Seq())
		assert.Equal(t, lifecycle.StatePrepared, node.State())

		runErr := make(chan error, 1)
		go func() {
			runErr <- node.Run()
		}()
		unittest.RequireCloseBefore(t, node.Ready(), time.Second, "node did not start")
		assert.Equal(t, lifecycle.StateStarted, node.State())

		ok, reason := node.ServerOkay()
		assert.True(t, ok)
		assert.Empty(t, reason)

		node.SignalStop()
		select {
		case err := <-runErr:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("node did not stop")
		}
		assert.Equal(t, lifecycle.StateStopped, node.State())
		assert.EqualValues(t, 1, shutdowns.Load())

		for _, name := range []string{"ledger.db", "transaction.db", "wallet.db"} {
			assert.FileExists(t, filepath.Join(dir, name))
		}
	})
}

func TestSetup_SetupObserverFailure(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		bus := events.NewBus()
		bus.Subscribe(events.TopicSetup, "faulty", func(context.Context) error {
			return errors.New("not ready")
		})

		_, err := builder(testConfig(t, dir), cmd.WithEventBus(bus)).Setup(context.Background())
		require.Error(t, err)
		assert.Equal(t, cmd.ExitSetup, cmd.ExitCode(err))
	})
}

func TestSetup_StoresUnavailable(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		// a regular file where the database directory should be
		blocker := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		_, err := builder(testConfig(t, filepath.Join(blocker, "db"))).Setup(context.Background())
		require.Error(t, err)
		assert.Equal(t, cmd.ExitSetup, cmd.ExitCode(err))
	})
}

func TestSetup_LoadFailure(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		cfg := testConfig(t, dir)
		cfg.StartUp = config.StartUpLoad
		cfg.StartLedger = "latest"

		_, err := builder(cfg).Setup(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, bootstrap.ErrLedgerNotFound)
		assert.Equal(t, cmd.ExitLoadFailure, cmd.ExitCode(err))
	})
}

func TestSetup_Dump(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		cfg := testConfig(t, dir)
		cfg.StartUp = config.StartUpDump
		cfg.StartLedger = strings.Repeat("ab", hash.HashLen)

		var out bytes.Buffer
		_, err := builder(cfg, cmd.WithDumpOutput(&out)).Setup(context.Background())
		assert.ErrorIs(t, err, bootstrap.ErrDumpComplete)
		assert.Equal(t, cmd.ExitSuccess, cmd.ExitCode(err))
		assert.Empty(t, out.String())
	})
}
