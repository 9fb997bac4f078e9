// Command voicegrant-server serves voice access tokens over HTTP.
//
// Key material comes from TWILIO_ACCOUNT_SID, TWILIO_API_KEY,
// TWILIO_API_SECRET and TWIML_APP_SID. A process started without them still
// serves, answering every token request with a misconfiguration error.
//
// Run:
//
//	voicegrant-server --addr :3000
//	curl -X POST localhost:3000/api/token -d '{"identity":"alice@example.com"}'
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/MrEthical07/voicegrant/httpapi"
	"github.com/MrEthical07/voicegrant/internal/logging"
	otelexport "github.com/MrEthical07/voicegrant/metrics/export/otel"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func main() {
	if err := run(os.Args[1:], os.Getenv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string) error {
	cfg, err := loadConfig(args, getenv)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	if err != nil {
		return err
	}

	builder := voicegrant.New().
		WithConfig(cfg.Engine).
		WithLogger(logger)

	if cfg.RedisAddr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.RedisAddr},
		})
		defer rdb.Close()
		builder.WithRedis(rdb)
	}

	if cfg.AuditLog != "" {
		w, closeAudit, err := openAuditLog(cfg.AuditLog)
		if err != nil {
			return err
		}
		defer closeAudit()
		builder.WithAuditSink(voicegrant.NewLogSink(zerolog.New(w).With().Str("stream", "audit").Logger()))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if cfg.OTel {
		shutdown, err := registerOTel(engine)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, httpapi.New(engine, cfg.HTTP, logger), cfg, logger)
}

func serve(ctx context.Context, srv *httpapi.Server, cfg serverConfig, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("token_path", cfg.HTTP.TokenPath).Msg("listening")
		errCh <- srv.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openAuditLog(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func registerOTel(engine *voicegrant.Engine) (func(), error) {
	provider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(provider)

	exporter, err := otelexport.NewExporter(otel.Meter("github.com/MrEthical07/voicegrant"), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("register otel metrics: %w", err)
	}

	return func() {
		_ = exporter.Close()
		_ = provider.Shutdown(context.Background())
	}, nil
}
