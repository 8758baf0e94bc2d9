package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/groupbot/groupbot/config"
	"github.com/groupbot/groupbot/core"
	"github.com/groupbot/groupbot/core/commands"
	"github.com/groupbot/groupbot/core/policy"
	"github.com/groupbot/groupbot/internal/configwatch"
	"github.com/groupbot/groupbot/internal/keychain"
	"github.com/groupbot/groupbot/internal/metrics"
	vkapi "github.com/groupbot/groupbot/vk/api"
	"github.com/groupbot/groupbot/vk/longpoll"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "groupbot",
	Short:         "Long-poll event bot for VK communities",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the community access token in the system keychain",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store a token read from GROUPBOT_TOKEN",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		token := os.Getenv("GROUPBOT_TOKEN")
		if token == "" {
			return fmt.Errorf("GROUPBOT_TOKEN is not set")
		}
		if err := keychain.Set(args[0], token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		fmt.Printf("token stored under account %q\n", args[0])
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove a stored token",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := keychain.Delete(args[0]); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		fmt.Printf("token removed from account %q\n", args[0])
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "groupbot.yaml", "path to config file")
	tokenCmd.AddCommand(tokenSetCmd, tokenDeleteCmd)
	rootCmd.AddCommand(runCmd, tokenCmd)
}

func run(parent context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)

	token, err := keychain.Get(cfg.Group.TokenAccount)
	if err != nil {
		return fmt.Errorf("load token from keychain (run `groupbot token set %s` first): %w", cfg.Group.TokenAccount, err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enable {
		metrics.Register(prometheus.DefaultRegisterer)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	api := vkapi.New(token, cfg.Group.ID, logger).WithVersion(cfg.Group.APIVersion)
	if cfg.Group.APIBaseURL != "" {
		api.WithBaseURL(cfg.Group.APIBaseURL)
	}
	poller := longpoll.New(logger).WithWait(cfg.LongPoll.Wait)

	bot := core.New(api, poller, logger)

	registry := commands.NewRegistry()
	registry.Register(&commands.HelpCommand{Registry: registry})

	if cfg.Commands.Path != "" {
		reloader := commands.NewReloader(registry, logger)
		reloader.Reload(cfg.Commands.Path)

		watcher := configwatch.New(cfg.Commands.ReloadInterval, logger)
		watcher.Watch(cfg.Commands.Path, func() {
			reloader.Reload(cfg.Commands.Path)
		})
		go watcher.Run(ctx)
	}

	pol := policy.New(cfg.Policy.AllowedPeers)
	dispatcher := commands.NewDispatcher(pol, registry, api, logger)
	bot.HandleEvent(dispatcher.Rule(), dispatcher.Handle)

	logger.Info("bot starting", "group_id", cfg.Group.ID)
	err = bot.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("bot stopped")
		return nil
	}
	return err
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
