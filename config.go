package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const maxCandles = 100

type Config struct {
	actionBurst    int
	actionRate     float64
	bind           string
	candles        int
	db             string
	playerTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.candles < 1 || c.candles > maxCandles {
		return fmt.Errorf("invalid candle count (must be between 1-%d inclusive): %d", maxCandles, c.candles)
	}
	if c.actionRate <= 0 {
		return fmt.Errorf("invalid action rate (must be greater than zero): %v", c.actionRate)
	}
	if c.actionBurst < 1 {
		return fmt.Errorf("invalid action burst (must be at least 1): %d", c.actionBurst)
	}
	if c.playerTimeout < 0 || c.sessionTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TENCANDLES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "tencandles",
		Short:         "A self-hosted table for Ten Candles: shared candles, dice pools and character sheets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVar(&cfg.actionBurst, "action-burst", 5, "actions a client may send at once before throttling (env: TENCANDLES_ACTION_BURST)")
	fs.Float64Var(&cfg.actionRate, "action-rate", 2, "sustained actions per second allowed per client (env: TENCANDLES_ACTION_RATE)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TENCANDLES_BIND)")
	fs.IntVar(&cfg.candles, "candles", 10, "candles lit at the start of each table (env: TENCANDLES_CANDLES)")
	fs.StringVar(&cfg.db, "db", "", "path to sqlite database; tables are kept in memory if unset (env: TENCANDLES_DB)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 10*time.Minute, "time before a disconnected GM gives up the seat (env: TENCANDLES_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TENCANDLES_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TENCANDLES_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TENCANDLES_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle tables are closed (env: TENCANDLES_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TENCANDLES_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TENCANDLES_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TENCANDLES_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TENCANDLES_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tencandles v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
