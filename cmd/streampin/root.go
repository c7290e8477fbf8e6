package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/streampin/streampin/internal/artifact"
	"github.com/streampin/streampin/internal/batch"
	"github.com/streampin/streampin/internal/challenge"
	"github.com/streampin/streampin/internal/config"
	"github.com/streampin/streampin/internal/descriptor"
	"github.com/streampin/streampin/internal/fetch"
	"github.com/streampin/streampin/internal/logger"
)

// errBatchFailed signals a non-zero exit without an extra error print; the
// batch summary has already been logged.
var errBatchFailed = errors.New("batch finished with failures")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streampin [flags] stream-list.json [more-lists...]",
		Short: "Pin live-stream manifests to stable local paths",
		Long: `streampin resolves configured live-video identifiers to their current
playback manifests and keeps a quality-reordered copy of each one under a
stable path, so players can point at a file that never moves while the
upstream URL churns.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	flags := cmd.Flags()
	flags.String("config", "", "config file (default: ./streampin.yaml)")
	flags.String("endpoint", "", "resolver endpoint base URL")
	flags.String("output", "", "output root directory for pinned manifests")
	flags.Duration("timeout", 0, "per-attempt HTTP timeout")
	flags.Int("max-retries", 0, "fetch attempts per stream")
	flags.Duration("retry-delay", 0, "base delay of the exponential backoff")
	flags.Duration("rate-limit-cooldown", 0, "fixed wait after a 403/429 response")
	flags.String("proxy", "", "proxy URL for outbound requests")
	flags.String("user-agent", "", "User-Agent header override")
	flags.Bool("solve-challenges", false, "evaluate inline JS challenges before giving up")
	flags.Bool("halt-on-failure", false, "stop the batch at the first failed stream")
	flags.Bool("no-fail-on-error", false, "exit 0 even when streams failed")
	flags.String("log-level", "", "log level (trace|debug|info|warn|error)")
	flags.String("log-format", "", "log format (console|json)")
	flags.String("log-path", "", "directory for rotated log files")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging)
	defer log.Close()

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("output", cfg.OutputRoot).
		Strs("lists", args).
		Msg("starting stream update")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, loaderLog := buildPipeline(cfg, log)

	var lists []batch.List
	listFailures := 0
	for _, path := range args {
		streams, err := descriptor.LoadList(path, loaderLog)
		if err != nil {
			loaderLog.Error().Err(err).Str("path", path).Msg("skipping stream list")
			listFailures++
			if cfg.HaltOnFailure {
				break
			}
			continue
		}
		lists = append(lists, batch.List{Source: path, Streams: streams})
	}

	result := runner.Run(ctx, lists)
	runner.LogSummary(result)

	if listFailures > 0 {
		log.Warn().Int("lists", listFailures).Msg("stream lists skipped due to errors")
	}
	if (result.Failed > 0 || listFailures > 0) && cfg.FailOnError {
		return errBatchFailed
	}
	return nil
}

// buildPipeline assembles the transport, fetcher, writer and runner from
// the resolved configuration. The HTTP client (and its connection pool and
// cookie jar) lives for the whole process.
func buildPipeline(cfg *config.Config, log *logger.Logger) (*batch.Runner, zerolog.Logger) {
	httpTransport := fetch.NewHTTPTransport(fetch.TransportOptions{
		ProxyURL:  cfg.ProxyURL,
		UserAgent: cfg.UserAgent,
	})
	var transport fetch.Transport = httpTransport
	if cfg.SolveChallenges {
		transport = challenge.NewTransport(httpTransport, httpTransport.Jar(), log.WithComponent("challenge"))
	}

	fetcher := fetch.NewFetcher(transport, fetch.Config{
		Endpoint:          cfg.Endpoint,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		RateLimitCooldown: cfg.RateLimitCooldown,
	}, log.WithComponent("fetch"))

	writer := artifact.NewWriter(cfg.OutputRoot, log.WithComponent("artifact"))
	runner := batch.NewRunner(fetcher, writer, batch.Options{
		HaltOnFailure: cfg.HaltOnFailure,
	}, log.WithComponent("batch"))

	return runner, log.WithComponent("loader")
}
