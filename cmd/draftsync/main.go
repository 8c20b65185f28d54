// Command draftsync is a headless companion for the draftsync library: it
// drains the local offline save queue against the remote document service,
// either continuously or once (--once).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/ottopen/draftsync"
	logAdapter "github.com/ottopen/draftsync/internal/adapters/log"
	"github.com/ottopen/draftsync/internal/cliconfig"
)

const longHelp = `Drain locally queued document saves to the remote service.

The editor writes drafts and queued saves to a local store whenever the
service is unreachable. This agent replays that queue: continuously on a
schedule and on reconnect, or exactly once with --once.

Configuration precedence: flags > DRAFTSYNC_* environment > config file
(default $HOME/.draftsync/config.toml).`

const exampleUsage = `  draftsync --service-url https://api.example.com --auth-key <api-key>
  draftsync --config $HOME/.draftsync/config.toml --once`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	root := &cobra.Command{
		Use:     "draftsync",
		Short:   "Drain locally queued document saves to the remote service",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides file config but is overridden by flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			// Log configuration (masking the API key)
			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			libCfg := draftsync.DefaultConfig()
			libCfg.ServiceURL = cfg.ServiceURL
			libCfg.AuthKey = cfg.AuthKey
			libCfg.ClientID = cfg.ClientID
			libCfg.StorePath = cfg.StorePath
			libCfg.HTTPTimeout = cfg.HTTPTimeout
			libCfg.ReplayInterval = cfg.ReplayInterval
			libCfg.MaxItemRetries = cfg.MaxItemRetries
			libCfg.Iface = cfg.Iface

			m, err := draftsync.New(libCfg,
				draftsync.WithLogger(logAdapter.NewZerologAdapterWithLogger(log)),
			)
			if err != nil {
				return fmt.Errorf("create manager: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if cfg.Once {
				return drainOnce(ctx, m, log)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := m.Start(ctx); err != nil {
				return fmt.Errorf("start manager: %w", err)
			}

			<-sigCh
			log.Info().Msg("received signal, stopping...")

			if err := m.Stop(); err != nil {
				return fmt.Errorf("stop manager: %w", err)
			}
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.draftsync/config.toml)")
	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "base URL of the document service")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")
	root.Flags().StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "client identifier sent with every request")
	root.Flags().StringVar(&cfg.StorePath, "store", cfg.StorePath, "path to the local draft store")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().DurationVar(&cfg.ReplayInterval, "replay-interval", cfg.ReplayInterval, "how often to check the replay queue")
	root.Flags().IntVar(&cfg.MaxItemRetries, "max-item-retries", cfg.MaxItemRetries, "replay attempts per entry before escrowing as conflict (0 = unbounded)")
	root.Flags().StringVar(&cfg.Iface, "iface", cfg.Iface, "network interface whose operstate drives connectivity (optional)")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "drain the queue once and exit")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("draftsync")
		os.Exit(1)
	}
}

// drainOnce runs a single replay pass and reports the result.
func drainOnce(ctx context.Context, m *draftsync.Manager, log zerolog.Logger) error {
	synced, failed, err := m.SyncNow(ctx)
	if err != nil {
		if errors.Is(err, draftsync.ErrOffline) {
			log.Warn().Msg("offline, nothing replayed")
			return nil
		}
		return fmt.Errorf("replay: %w", err)
	}
	log.Info().Int("synced", synced).Int("failed", failed).Msg("replay pass complete")
	if failed > 0 {
		return fmt.Errorf("%d queue entries failed to replay", failed)
	}
	return nil
}
