package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mmx233/RGNB/config"
	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/node"
	"github.com/Mmx233/RGNB/tools"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var (
	gnbConfigFile = tools.GetenvDefault(config.EnvPrefix+"GNB_CONFIG", "gnb.yaml")
	ueConfigFile  = tools.GetenvDefault(config.EnvPrefix+"UE_CONFIG", "ue.yaml")
	metricsAddr   = tools.GetenvDefault(config.EnvPrefix+"METRICS_ADDR", "")
	pauseTimeout  = tools.GetenvDuration(config.EnvPrefix+"PAUSE_TIMEOUT", config.DefaultPauseTimeout)

	Cmd = &cobra.Command{
		Use:   "run",
		Short: "Run a relay node",
		Args:  cobra.NoArgs,
		RunE:  runNode,
	}
)

func init() {
	Cmd.Flags().StringVarP(&gnbConfigFile, "gnb", "g", gnbConfigFile, "path of gnb config file")
	Cmd.Flags().StringVarP(&ueConfigFile, "ue", "u", ueConfigFile, "path of ue config file")
	Cmd.Flags().StringVar(&metricsAddr, "metrics", metricsAddr, "listen address of the prometheus endpoint, empty disables it")
	Cmd.Flags().DurationVar(&pauseTimeout, "pause-timeout", pauseTimeout, "how long a command waits for tasks to pause")
}

func runNode(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "run-cmd").Logger()

	logger.Info().Str("gnb", gnbConfigFile).Str("ue", ueConfigFile).Msg("loading configuration")
	gnbCfg, err := config.LoadGnbConfig(gnbConfigFile)
	if err != nil {
		return err
	}
	ueCfg, err := config.LoadUeConfig(ueConfigFile)
	if err != nil {
		return err
	}

	n, err := node.New(gnbCfg, ueCfg, node.Options{Logger: log.Logger, PauseTimeout: pauseTimeout})
	if err != nil {
		return err
	}
	registry := node.NewRegistry(log.Logger)
	if err = launch(registry, n); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() {
		registry.Remove(n.Name())
		n.Stop()
	}()

	g, ctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
		g.Go(func() error {
			logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	dumpCh := make(chan os.Signal, 1)
	signal.Notify(dumpCh, syscall.SIGUSR1)
	defer signal.Stop(dumpCh)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-dumpCh:
				for _, name := range registry.Names() {
					if target, ok := registry.Get(name); ok {
						dumpStatus(ctx, target, os.Stdout)
					}
				}
			}
		}
	})

	if err = g.Wait(); err != nil {
		logger.Error().Err(err).Msg("node error")
		return err
	}
	logger.Info().Msg("received shutdown signal, node stopping")
	return nil
}

// launch registers and starts n. A node that fails either step is stopped,
// which releases its sockets.
func launch(registry *node.Registry, n *node.Node) error {
	if err := registry.Insert(n); err != nil {
		n.Stop()
		return err
	}
	if err := n.Start(); err != nil {
		registry.Remove(n.Name())
		return err
	}
	return nil
}
