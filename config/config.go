package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g. VBCD_NODE_SIZE.
const EnvPrefix = "VBCD"

// StartUp selects how the node establishes its first ledger.
type StartUp string

const (
	StartUpFresh    StartUp = "fresh"
	StartUpDump     StartUp = "dump"
	StartUpLoad     StartUp = "load"
	StartUpLoadFile StartUp = "loadfile"
	StartUpReplay   StartUp = "replay"
	StartUpNetwork  StartUp = "network"
)

// Config is the node configuration. It is populated, in order of precedence, from command line
// flags, VBCD_* environment variables, an optional config file and the defaults.
type Config struct {
	NodeID       string `mapstructure:"node-id"`
	LogLevel     string `mapstructure:"loglevel" validate:"oneof=trace debug info warn error"`
	DatabasePath string `mapstructure:"database-path" validate:"required"`
	NodeSize     string `mapstructure:"node-size" validate:"oneof=auto tiny small medium large huge"`

	NodeDBBackend       string `mapstructure:"nodedb-backend" validate:"oneof=badger pebble memory"`
	NodeDBImportBackend string `mapstructure:"nodedb-import-backend" validate:"omitempty,oneof=badger pebble"`
	NodeDBImportPath    string `mapstructure:"nodedb-import-path" validate:"required_with=NodeDBImportBackend"`

	StartUp            StartUp `mapstructure:"start-up" validate:"oneof=fresh dump load loadfile replay network"`
	StartLedger        string  `mapstructure:"start-ledger"`
	ExpectedLedgerHash string  `mapstructure:"expected-ledger-hash" validate:"omitempty,len=64,hexadecimal"`

	StandAlone bool `mapstructure:"standalone"`
	ELBSupport bool `mapstructure:"elb-support"`

	GenesisAccount  string `mapstructure:"genesis-account" validate:"required"`
	GenesisCoins    uint64 `mapstructure:"genesis-coins" validate:"gt=0"`
	GenesisCoinsVBC uint64 `mapstructure:"genesis-coins-vbc"`

	// Size is resolved from NodeSize by Load.
	Size NodeSize `mapstructure:"-"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		LogLevel:        "info",
		DatabasePath:    "./db",
		NodeSize:        "auto",
		NodeDBBackend:   "badger",
		StartUp:         StartUpNetwork,
		GenesisAccount:  "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		GenesisCoins:    100_000_000_000_000_000,
		GenesisCoinsVBC: 0,
	}
}

// BindFlags registers the command line flags of the node on the flag set, using the
// defaults as flag defaults.
func BindFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("config", "", "path to the config file")
	flags.String("node-id", d.NodeID, "identifier of the node, used in logs")
	flags.String("loglevel", d.LogLevel, "level for logging output")
	flags.String("database-path", d.DatabasePath, "directory holding the node databases")
	flags.String("node-size", d.NodeSize, "size class of the node: auto, tiny, small, medium, large or huge")
	flags.String("nodedb-backend", d.NodeDBBackend, "node store backend: badger, pebble or memory")
	flags.String("nodedb-import-backend", d.NodeDBImportBackend, "backend of a node store to import during setup")
	flags.String("nodedb-import-path", d.NodeDBImportPath, "directory of the node store to import during setup")
	flags.String("start-up", string(d.StartUp), "start up mode: fresh, dump, load, loadfile, replay or network")
	flags.String("start-ledger", d.StartLedger, "ledger to start from: hash, sequence, 'latest' or a file name")
	flags.String("expected-ledger-hash", d.ExpectedLedgerHash, "refuse to start unless the loaded ledger has this hash")
	flags.Bool("standalone", d.StandAlone, "run without connecting to the network")
	flags.Bool("elb-support", d.ELBSupport, "report server health for load balancers")
	flags.String("genesis-account", d.GenesisAccount, "account receiving all coins of a fresh genesis ledger")
	flags.Uint64("genesis-coins", d.GenesisCoins, "total coins of a fresh genesis ledger")
	flags.Uint64("genesis-coins-vbc", d.GenesisCoinsVBC, "total VBC coins of a fresh genesis ledger")
}

// Load reads the configuration. flags may be nil. A missing config file is not an error;
// an invalid configuration is reported as ErrInvalidConfig.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("could not bind flags: %w", err)
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("could not read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("node-id", d.NodeID)
	v.SetDefault("loglevel", d.LogLevel)
	v.SetDefault("database-path", d.DatabasePath)
	v.SetDefault("node-size", d.NodeSize)
	v.SetDefault("nodedb-backend", d.NodeDBBackend)
	v.SetDefault("nodedb-import-backend", d.NodeDBImportBackend)
	v.SetDefault("nodedb-import-path", d.NodeDBImportPath)
	v.SetDefault("start-up", string(d.StartUp))
	v.SetDefault("start-ledger", d.StartLedger)
	v.SetDefault("expected-ledger-hash", d.ExpectedLedgerHash)
	v.SetDefault("standalone", d.StandAlone)
	v.SetDefault("elb-support", d.ELBSupport)
	v.SetDefault("genesis-account", d.GenesisAccount)
	v.SetDefault("genesis-coins", d.GenesisCoins)
	v.SetDefault("genesis-coins-vbc", d.GenesisCoinsVBC)
}

// Validate checks the struct constraints and the cross field rules, and resolves Size.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return NewInvalidConfigErr(err)
	}

	size, err := ParseNodeSize(c.NodeSize)
	if err != nil {
		return NewInvalidConfigErr(err)
	}
	c.Size = size

	switch c.StartUp {
	case StartUpDump, StartUpReplay, StartUpLoadFile:
		if c.StartLedger == "" {
			return NewInvalidConfigErr(fmt.Errorf("start-up %s requires start-ledger", c.StartUp))
		}
	}
	return nil
}

// Items returns the tunables of the configured node size.
func (c *Config) Items() SizedItems {
	return c.Size.Items()
}

// NodeDBPath returns the directory of the node store.
func (c *Config) NodeDBPath() string {
	return filepath.Join(c.DatabasePath, "nodedb")
}
