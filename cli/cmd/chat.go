package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/adapter"
	redisadapter "github.com/pithecene-io/assay/adapter/redis"
	"github.com/pithecene-io/assay/adapter/webhook"
	"github.com/pithecene-io/assay/archive"
	"github.com/pithecene-io/assay/cli/config"
	"github.com/pithecene-io/assay/client"
	"github.com/pithecene-io/assay/iox"
	"github.com/pithecene-io/assay/journal"
	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/session"
	"github.com/pithecene-io/assay/types"
)

// Exit codes for chat outcomes.
const (
	exitDone          = 0
	exitUpstreamError = 1
	exitStreamFault   = 2
)

// publishTimeout bounds completion event publishing after the stream has
// already ended; it is deliberately independent of the stream context,
// which may be canceled by then.
const publishTimeout = 10 * time.Second

// ChatCommand returns the chat command, the only command that talks to
// the copilot service.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Send one query and stream the response to completion",
		ArgsUsage: "<query>",
		Flags: append([]cli.Flag{
			ConfigFlag,
			// Client flags
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Copilot service base URL",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Backend model name (empty uses service default)",
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "Requesting user identifier",
			},
			&cli.StringFlag{
				Name:  "token-path",
				Usage: "Path to bearer token file",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Session ID (generated when omitted)",
			},
			&cli.StringFlag{
				Name:  "system-prompt",
				Usage: "System prompt override",
			},
			&cli.BoolFlag{
				Name:  "include-history",
				Usage: "Carry prior conversation turns server-side",
			},
			&cli.IntFlag{
				Name:  "attempt",
				Usage: "Attempt number (starts at 1)",
				Value: 1,
			},
			// Journal flags
			&cli.StringFlag{
				Name:  "journal",
				Usage: "Directory for event journals (one file per session)",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion adapter: redis or webhook",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Adapter endpoint (redis:// URL or webhook URL)",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel (redis adapter only)",
			},
			// Output flags
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the result summary",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print stream counters after the result summary",
			},
		}, archiveFlags()...),
		Action: chatAction,
	}
}

func chatAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("chat requires exactly one query argument")
	}
	query := c.Args().First()

	fileCfg, err := loadFileConfig(c)
	if err != nil {
		return err
	}

	clientCfg := resolveClientConfig(c, fileCfg)

	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = client.NewSessionID()
	}

	meta := &types.SessionMeta{
		SessionID: sessionID,
		UserID:    clientCfg.UserID,
		Attempt:   c.Int("attempt"),
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	logger := log.NewLogger(meta)
	collector := metrics.NewCollector(sessionID, clientCfg.UserID, clientCfg.Model)

	cl, err := client.New(clientCfg, logger)
	if err != nil {
		return err
	}

	// Journal writer, if configured
	journalDir := c.String("journal")
	if journalDir == "" {
		journalDir = fileCfg.Journal.Dir
	}
	var journalWriter *journal.Writer
	if journalDir != "" {
		f, err := openJournalFile(journalDir, sessionID)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer iox.DiscardClose(f)
		journalWriter = journal.NewWriter(f, sessionID)
	}

	observer := func(event types.StreamEvent) {
		if !c.Bool("quiet") {
			if text := event.Text(); text != "" {
				fmt.Print(text)
			}
		}
		if journalWriter != nil {
			if err := journalWriter.Append(event); err != nil {
				logger.Warn("journal append failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	result, runErr := cl.Run(ctx, query, meta, collector, observer)
	if runErr != nil && result == nil {
		if session.IsCanceledError(runErr) {
			return cli.Exit("canceled", exitStreamFault)
		}
		return cli.Exit(fmt.Sprintf("stream failed: %v", runErr), exitStreamFault)
	}

	publishCompletion(c, fileCfg, meta, clientCfg.Model, result, logger, collector)
	archiveTranscript(c, fileCfg, meta, result, logger, collector)

	if !c.Bool("quiet") {
		printChatResult(result, sessionID)
	}
	if c.Bool("stats") {
		printStreamStats(collector.Snapshot())
	}

	return cli.Exit("", resultExitCode(result, runErr))
}

// resolveClientConfig merges config file defaults with CLI flags; flags
// always win.
func resolveClientConfig(c *cli.Context, fileCfg *config.Config) client.Config {
	cfg := client.Config{
		BaseURL:        fileCfg.Client.BaseURL,
		Model:          fileCfg.Client.Model,
		UserID:         fileCfg.Client.UserID,
		TokenPath:      fileCfg.Client.TokenPath,
		SystemPrompt:   fileCfg.Client.SystemPrompt,
		IncludeHistory: fileCfg.Client.IncludeHistory,
		ConnectTimeout: fileCfg.Client.ConnectTimeout.Duration,
		Retries:        client.DefaultRetries,
	}
	if fileCfg.Client.Retries != nil {
		cfg.Retries = *fileCfg.Client.Retries
	}

	if v := c.String("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v := c.String("model"); v != "" {
		cfg.Model = v
	}
	if v := c.String("user-id"); v != "" {
		cfg.UserID = v
	}
	if v := c.String("token-path"); v != "" {
		cfg.TokenPath = v
	}
	if v := c.String("system-prompt"); v != "" {
		cfg.SystemPrompt = v
	}
	if c.IsSet("include-history") {
		cfg.IncludeHistory = c.Bool("include-history")
	}
	return cfg
}

// loadFileConfig loads the --config file, or returns an empty config
// when no file is specified.
func loadFileConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func openJournalFile(dir, sessionID string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(dir, sessionID+".journal"))
}

// publishCompletion sends the completion event to the configured
// adapter, if any. Publish failures are logged and counted but never
// change the chat exit code.
func publishCompletion(c *cli.Context, fileCfg *config.Config, meta *types.SessionMeta, model string, result *session.Result, logger *log.Logger, collector *metrics.Collector) {
	pub, err := buildAdapter(c, fileCfg)
	if err != nil {
		logger.Warn("adapter setup failed", map[string]any{
			"error": err.Error(),
		})
		collector.IncPublishFailure()
		return
	}
	if pub == nil {
		return
	}
	defer iox.DiscardErr(pub.Close)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event := adapter.FromResult(meta, model, result)
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("completion publish failed", map[string]any{
			"error": err.Error(),
		})
		collector.IncPublishFailure()
		return
	}
	collector.IncPublishSuccess()
}

// archiveTranscript persists the terminal session result when an
// archive path is configured. Like completion publishing, archive
// failures are logged and counted but never change the chat exit code:
// the stream outcome already happened.
func archiveTranscript(c *cli.Context, fileCfg *config.Config, meta *types.SessionMeta, result *session.Result, logger *log.Logger, collector *metrics.Collector) {
	store, err := buildArchiveStore(c, fileCfg, meta)
	if err != nil {
		logger.Warn("archive setup failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if store == nil {
		return
	}

	instrumented := archive.NewInstrumentedStore(store, collector)
	defer iox.DiscardErr(instrumented.Close)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := instrumented.WriteTranscript(ctx, result); err != nil {
		logger.Warn("transcript archive failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// buildAdapter constructs the configured adapter, or nil when none is
// configured.
func buildAdapter(c *cli.Context, fileCfg *config.Config) (adapter.Adapter, error) {
	kind := c.String("adapter")
	url := c.String("adapter-url")
	channel := c.String("adapter-channel")

	if kind == "" {
		kind = fileCfg.Adapter.Type
	}
	if url == "" {
		url = fileCfg.Adapter.URL
	}
	if channel == "" {
		channel = fileCfg.Adapter.Channel
	}
	if kind == "" {
		return nil, nil
	}

	switch kind {
	case "redis":
		cfg := redisadapter.Config{
			URL:     url,
			Channel: channel,
			Timeout: fileCfg.Adapter.Timeout.Duration,
		}
		if fileCfg.Adapter.Retries != nil {
			cfg.Retries = *fileCfg.Adapter.Retries
		}
		return redisadapter.New(cfg)
	case "webhook":
		cfg := webhook.Config{
			URL:     url,
			Headers: fileCfg.Adapter.Headers,
			Timeout: fileCfg.Adapter.Timeout.Duration,
		}
		if fileCfg.Adapter.Retries != nil {
			cfg.Retries = *fileCfg.Adapter.Retries
		}
		return webhook.New(cfg)
	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be redis or webhook)", kind)
	}
}

func resultExitCode(result *session.Result, runErr error) int {
	if runErr != nil {
		return exitStreamFault
	}
	switch result.State {
	case session.StateDone:
		return exitDone
	case session.StateError:
		return exitUpstreamError
	default:
		return exitStreamFault
	}
}

func printChatResult(result *session.Result, sessionID string) {
	fmt.Printf("\n\n=== Session Result ===\n")
	fmt.Printf("Session ID:   %s\n", sessionID)
	if result.JobID != "" {
		fmt.Printf("Job ID:       %s\n", result.JobID)
	}
	fmt.Printf("State:        %s\n", result.State)
	fmt.Printf("Elapsed:      %s\n", result.Elapsed.Round(time.Millisecond))

	switch result.State {
	case session.StateDone:
		fmt.Printf("Iterations:   %d\n", result.Iterations)
		fmt.Printf("Tools Used:   %d\n", len(result.ToolsUsed))
		fmt.Printf("Duration:     %.2fs\n", result.DurationSeconds)
	case session.StateError:
		fmt.Printf("Error:        %s\n", result.ErrorMessage)
		if result.WillRetry {
			fmt.Printf("Will Retry:   attempt %d\n", result.RetryAttempt)
		}
	case session.StateUnexpectedEnd:
		fmt.Printf("Content Kept: %d bytes\n", len(result.Content))
	}
}

func printStreamStats(snap metrics.Snapshot) {
	fmt.Printf("\n=== Stream Stats ===\n")
	fmt.Printf("Frames Received:  %d\n", snap.FramesReceived)
	fmt.Printf("Heartbeats:       %d\n", snap.Heartbeats)
	fmt.Printf("Decode Errors:    %d\n", snap.DecodeErrors)
	fmt.Printf("Discarded Frames: %d\n", snap.DiscardedFrames)
	for kind, n := range snap.EventsByKind {
		fmt.Printf("  %-16s%d\n", kind+":", n)
	}
}
