package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/authn"
	"github.com/sumanthd032/collabtext/internal/config"
	"github.com/sumanthd032/collabtext/internal/httpapi"
	"github.com/sumanthd032/collabtext/internal/logging"
	"github.com/sumanthd032/collabtext/internal/registry"
	"github.com/sumanthd032/collabtext/internal/session"
	"github.com/sumanthd032/collabtext/internal/store"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "collabtext-server",
		Short: "Real-time collaborative text editing engine",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd prints the fully-resolved runtime configuration (flags, env,
// config file, defaults, in that precedence) without starting the server.
// litter.Dump gives an operator a readable, field-labeled struct dump rather
// than a raw %+v, the same debug-printing role it plays for the retrieval
// pack's own oplog inspection tool.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved runtime configuration and exit",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		appConfig, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		litter.Dump(appConfig)
		return nil
	},
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address for live snapshot cache and pub/sub")
	cmd.PersistentFlags().String("postgres-url", defaults.GetString("postgres.url"), "Postgres DSN for durable snapshots and operation log (disabled if empty)")
	cmd.PersistentFlags().Float64("max-ops-per-sec", defaults.GetFloat64("session.max_ops_per_sec"), "Per-client operation rate ceiling")
	cmd.PersistentFlags().Int("max-clients-per-doc", defaults.GetInt("session.max_clients_per_doc"), "Maximum simultaneous clients per document")
	cmd.PersistentFlags().Int("history-size", defaults.GetInt("session.history_size"), "Bounded operation history length per document")
	cmd.PersistentFlags().Duration("idle-timeout", defaults.GetDuration("session.idle_timeout"), "Session retirement interval with no clients")
	cmd.PersistentFlags().Int("outbound-queue-size", defaults.GetInt("session.outbound_queue_size"), "Per-client outbound event queue bound")
	cmd.PersistentFlags().String("jwt-secret", "", "Connection bearer-token secret (disables auth if empty)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "postgres.url", "postgres-url")
	bindFlag(cmd, "session.max_ops_per_sec", "max-ops-per-sec")
	bindFlag(cmd, "session.max_clients_per_doc", "max-clients-per-doc")
	bindFlag(cmd, "session.history_size", "history-size")
	bindFlag(cmd, "session.idle_timeout", "idle-timeout")
	bindFlag(cmd, "session.outbound_queue_size", "outbound-queue-size")
	bindFlag(cmd, "auth.jwt_secret", "jwt-secret")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.New(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	sessCfg := session.Config{
		MaxOpsPerSec:      appConfig.MaxOpsPerSec,
		MaxClientsPerDoc:  appConfig.MaxClientsPerDoc,
		HistorySize:       appConfig.HistorySize,
		IdleTimeout:       appConfig.IdleTimeout,
		OutboundQueueSize: appConfig.OutboundQueueSize,
	}

	// Redis backs the live snapshot cache and cross-process change fan-out;
	// Postgres is the durable snapshot/operation log and only wired in when
	// a DSN is configured, matching the "(disabled)" default in the config
	// table. Each adapter retries its connection for up to 30 seconds; a
	// store that still fails is left out and the server starts without it
	// (in-memory-only when neither is available) rather than aborting.
	redisStore, err := store.NewRedisStore(ctx, appConfig.RedisAddr, logger)
	if err != nil {
		logger.Warn("redis unavailable at startup, running without a live cache", zap.Error(err))
		redisStore = nil
	} else {
		defer redisStore.Close()
	}

	var pgStore *store.PostgresStore
	if appConfig.PostgresURL != "" {
		pgStore, err = store.NewPostgresStore(ctx, appConfig.PostgresURL, logger)
		if err != nil {
			logger.Warn("postgres unavailable at startup, running without durable persistence", zap.Error(err))
			pgStore = nil
		} else {
			defer pgStore.Close()
		}
	}

	composite := store.NewComposite(redisStore, pgStore, logger)

	reg := registry.New(sessCfg, logger, composite, composite, composite)
	authenticator := authn.New(appConfig.JWTSecret)
	health := httpapi.NewHealthState()

	handler := httpapi.NewRouter(reg, authenticator, health, logger, httpapi.Config{
		OutboundQueueSize: appConfig.OutboundQueueSize,
	})

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		health.Drain()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
