package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vbc-network/vbcd/cmd"
	"github.com/vbc-network/vbcd/config"
)

var rootCmd = &cobra.Command{
	Use:           "vbcd",
	Short:         "Run a vbc ledger node",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	config.BindFlags(rootCmd.Flags())
}

func main() {
	err := rootCmd.Execute()
	code := cmd.ExitCode(err)
	if code != cmd.ExitSuccess {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func run(c *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.Flags())
	if err != nil {
		return err
	}

	builder := cmd.NewNodeBuilder(cfg, cmd.WithRegisterer(prometheus.DefaultRegisterer))
	node, err := builder.Setup(context.Background())
	if err != nil {
		return err
	}
	return node.Run()
}
