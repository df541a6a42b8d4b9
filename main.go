// package main reads & validates configuration for the dev proxy
// and if the config is valid starts and monitors an instance of the proxy service
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"golang.org/x/sync/errgroup"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/kava-labs/kava-dev-proxy/routines"
	"github.com/kava-labs/kava-dev-proxy/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// cliFlags override the values read from the environment.
type cliFlags struct {
	port      string
	env       string
	configDir string
	watch     bool
}

func newRootCommand() *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:          "envproxy",
		Short:        "Environment aware dev proxy for HTTP, WebSocket and SSE traffic",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.env, "env", "", "environment whose targets are proxied (overrides "+config.PROXY_ENV_ENVIRONMENT_KEY+")")
	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "directory probed for proxy.config.{yaml,yml,json} (overrides "+config.PROXY_CONFIG_DIR_ENVIRONMENT_KEY+")")

	serve := &cobra.Command{
		Use:   service.CommandServe,
		Short: "Run the proxy and its control api",
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceConfig, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), serviceConfig)
		},
	}
	serve.Flags().StringVar(&flags.port, "port", "", "port to listen on (overrides "+config.PROXY_SERVICE_PORT_ENVIRONMENT_KEY+")")
	serve.Flags().BoolVar(&flags.watch, "watch", false, "reload the routes when the external config file changes (overrides "+config.PROXY_CONFIG_WATCH_ENVIRONMENT_KEY+")")

	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the routes the proxy would serve and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceConfig, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return printRoutes(cmd.OutOrStdout(), serviceConfig)
		},
	}

	root.AddCommand(serve, routesCmd)

	return root
}

// loadConfig reads the config from the environment, applies the flags
// the user set and validates the result.
func loadConfig(cmd *cobra.Command, flags cliFlags) (config.Config, error) {
	serviceConfig := config.ReadConfig()

	if cmd.Flags().Changed("port") {
		serviceConfig.ProxyServicePort = flags.port
	}
	if cmd.Flags().Changed("env") {
		serviceConfig.ProxyEnv = flags.env
	}
	if cmd.Flags().Changed("config-dir") {
		serviceConfig.ProxyConfigDir = flags.configDir
	}
	if cmd.Flags().Changed("watch") {
		serviceConfig.ProxyConfigWatchEnabled = flags.watch
	}

	if err := config.Validate(serviceConfig); err != nil {
		return serviceConfig, err
	}

	return serviceConfig, nil
}

func runServe(ctx context.Context, serviceConfig config.Config) error {
	serviceLogger, err := logging.New(serviceConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logging.CloseOutputs()

	serviceLogger.Debug().Msg(fmt.Sprintf("initial config: %+v", serviceConfig))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	proxyService, err := service.New(ctx, serviceConfig, config.Options{}, &serviceLogger)
	if err != nil {
		serviceLogger.Error().Err(err).Msg("error creating proxy service")
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		serviceLogger.Info().Str("port", serviceConfig.ProxyServicePort).Msg("proxy service listening")
		return proxyService.Run()
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		serviceLogger.Info().Msg("shutting down proxy service")
		return proxyService.Shutdown(shutdownCtx)
	})

	if serviceConfig.ProxyConfigWatchEnabled {
		err := config.WatchExternal(ctx, serviceConfig.ProxyConfigDir, config.DefaultWatchDebounce, &serviceLogger, proxyService.Reload)
		if err != nil {
			serviceLogger.Error().Err(err).Str("dir", serviceConfig.ProxyConfigDir).Msg("unable to watch external proxy config")
		}
	}

	if serviceConfig.MetricDatabaseEnabled {
		if err := startMetricPruning(ctx, g, serviceConfig, proxyService, serviceLogger); err != nil {
			return err
		}
	}

	return g.Wait()
}

func startMetricPruning(ctx context.Context, g *errgroup.Group, serviceConfig config.Config, proxyService service.ProxyService, serviceLogger logging.ServiceLogger) error {
	routine, err := routines.NewMetricPruningRoutine(routines.MetricPruningRoutineConfig{
		Interval:         serviceConfig.MetricPruningRoutineInterval,
		StartDelay:       serviceConfig.MetricPruningRoutineDelayFirst,
		MaxMetricAgeDays: serviceConfig.MetricPruningMaxRequestAgeDays,
		Database:         proxyService.Database,
		Logger:           serviceLogger,
	})
	if err != nil {
		return err
	}

	errs, err := routine.Run(ctx)
	if err != nil {
		return err
	}

	g.Go(func() error {
		for err := range errs {
			serviceLogger.Error().Err(err).Msg("metric pruning routine error")
		}
		return nil
	})

	return nil
}

// printRoutes writes the route table of the configured environment as JSON.
func printRoutes(out io.Writer, serviceConfig config.Config) error {
	serviceLogger := logging.Nop()

	options := config.Options{}
	if serviceConfig.ProxyEnv != "" {
		options.Env = config.EnvKey(serviceConfig.ProxyEnv)
	}

	plugin := service.NewPlugin(options,
		service.WithConfigDir(serviceConfig.ProxyConfigDir),
		service.WithServiceLogger(&serviceLogger),
		service.WithLogOutput(io.Discard),
	)
	table := plugin.Activate(service.CommandServe)

	encoded, err := json.Marshal(service.RoutesResponse{Env: table.Env, Routes: table.Entries()})
	if err != nil {
		return err
	}

	_, err = out.Write(pretty.Pretty(encoded))
	return err
}
