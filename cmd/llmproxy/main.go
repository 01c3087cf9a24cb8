package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llmproxy/internal/config"
	"llmproxy/internal/httpapi"
	"llmproxy/internal/upstream"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("llmproxy: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "llmproxy",
		Short:         "HTTP proxy in front of a local Ollama inference server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, configPath)
		},
	}

	// Flags take their defaults from the environment so containerized
	// deployments can configure everything without arguments.
	root.Flags().StringVar(&configPath, "config", os.Getenv("LLMPROXY_CONFIG"), "Optional config file (.yaml/.json/.toml)")
	root.Flags().String("addr", envOr("LLMPROXY_ADDR", ":3335"), "HTTP listen address, e.g. :3335")
	root.Flags().String("upstream", envOr("LLM_SERVER_URL", "http://localhost:11434"), "Base URL of the upstream Ollama server")
	root.Flags().String("default-model", envOr("LLMPROXY_DEFAULT_MODEL", "llama2"), "Model tag used when a request omits model")
	root.Flags().Int("generate-timeout", 60, "Upstream generate timeout in seconds (0=disabled)")
	root.Flags().Int64("max-body-bytes", 1<<20, "Maximum accepted JSON request body size")
	root.Flags().Int("model-cache-ttl", 0, "TTL in seconds for the cached model listing (0=disabled)")
	root.Flags().String("log-level", envOr("LLMPROXY_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.Flags().String("cors-origins", os.Getenv("LLMPROXY_CORS_ORIGINS"), "Comma-separated allowed CORS origins (default *)")
	root.Flags().Bool("no-cors", false, "Disable the CORS middleware entirely")
	return root
}

func run(cmd *cobra.Command, configPath string) error {
	// A .env file is optional; real environment variables win regardless.
	_ = godotenv.Load()

	cfg := config.Defaults()
	cfg.Addr = envOr("LLMPROXY_ADDR", cfg.Addr)
	cfg.UpstreamURL = envOr("LLM_SERVER_URL", cfg.UpstreamURL)
	cfg.DefaultModel = envOr("LLMPROXY_DEFAULT_MODEL", cfg.DefaultModel)
	cfg.LogLevel = envOr("LLMPROXY_LOG_LEVEL", cfg.LogLevel)

	if configPath != "" {
		fileCfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = config.Merge(cfg, fileCfg)
	}

	// Explicit flags override both environment and file values.
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("upstream") {
		cfg.UpstreamURL, _ = flags.GetString("upstream")
	}
	if flags.Changed("default-model") {
		cfg.DefaultModel, _ = flags.GetString("default-model")
	}
	if flags.Changed("generate-timeout") {
		cfg.GenerateTimeout, _ = flags.GetInt("generate-timeout")
	}
	if flags.Changed("max-body-bytes") {
		cfg.MaxBodyBytes, _ = flags.GetInt64("max-body-bytes")
	}
	if flags.Changed("model-cache-ttl") {
		cfg.ModelCacheTTL, _ = flags.GetInt("model-cache-ttl")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("cors-origins") {
		v, _ := flags.GetString("cors-origins")
		cfg.CORS.AllowedOrigins = splitCSV(v)
	}
	if flags.Changed("no-cors") {
		cfg.CORS.Disabled, _ = flags.GetBool("no-cors")
	}

	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetDefaultModel(cfg.DefaultModel)
	httpapi.SetCORSOptions(!cfg.CORS.Disabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	client := upstream.New(cfg.UpstreamURL,
		upstream.WithGenerateTimeout(time.Duration(cfg.GenerateTimeout)*time.Second),
		upstream.WithLogger(logger),
	)
	var svc httpapi.Service = client
	if cfg.ModelCacheTTL > 0 {
		svc = upstream.NewCached(client, time.Duration(cfg.ModelCacheTTL)*time.Second)
	}

	// Base context lets shutdown cancel in-flight relays.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(svc)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("upstream", cfg.UpstreamURL).Msg("llmproxy listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(lvl)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated list, trimming spaces and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
