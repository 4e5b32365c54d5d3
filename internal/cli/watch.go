package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smvora4u/restaurant-management/internal/config"
	"github.com/smvora4u/restaurant-management/internal/feed"
	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/metrics"
	"github.com/smvora4u/restaurant-management/internal/redisstore"
	"github.com/smvora4u/restaurant-management/internal/store"
)

const drainInterval = 10 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	ConfigPath  string
	EnvFiles    []string
	Database    string
	RedisURL    string
	MetricsAddr string
	Brokers     string
	Topic       string
	GroupID     string
	StatusTopic string
	Input       string
	Reconcile   bool
}

// WatchResult summarizes a finished watch.
type WatchResult struct {
	Delivered  int   `json:"delivered"`
	Skipped    int   `json:"skipped"`
	Reconciled int   `json:"reconciled"`
	LastSeq    int64 `json:"lastSeq"`
}

// String renders the counters on one line.
func (r WatchResult) String() string {
	return fmt.Sprintf("delivered=%d skipped=%d reconciled=%d last_seq=%d",
		r.Delivered, r.Skipped, r.Reconciled, r.LastSeq)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the reconciliation guard over a notification feed",
		Long: `Consume item-change notifications and keep each stored order's status
in step with its items.

Notifications come from Kafka when brokers are configured, otherwise from
--input or stdin as JSON lines. Each notification's items are written to the
database before the guard sees them. Status writes are recorded in the push
log and, with --status-topic, announced on Kafka.

Settings are layered: the CUE config file, then ORDERS_* environment
variables (optionally loaded from --env-file), then flags.

With stdin or --input the command exits once the feed ends and the last
debounced tasks have fired.

Examples:
  orderctl watch --db ./orders.db < notifications.jsonl
  orderctl watch --config guard.cue --brokers kafka:9092 --metrics-addr :9090
  orderctl watch --db ./orders.db --redis-url redis://localhost:6379/0 --reconcile`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a CUE or JSON config file")
	flags.StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files to load before reading ORDERS_* variables")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite database")
	flags.StringVar(&opts.RedisURL, "redis-url", "", "share rate windows through this Redis server")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&opts.Brokers, "brokers", "", "comma-separated Kafka brokers")
	flags.StringVar(&opts.Topic, "topic", "", "Kafka topic carrying notifications")
	flags.StringVar(&opts.GroupID, "group", "", "Kafka consumer group")
	flags.StringVar(&opts.StatusTopic, "status-topic", "", "Kafka topic to announce status writes on")
	flags.StringVar(&opts.Input, "input", "", "read JSON-lines notifications from this file instead of stdin")
	flags.BoolVar(&opts.Reconcile, "reconcile", false, "check every stored order once at startup")

	return cmd
}

// resolveConfig layers the config file, the environment and the flags.
func (o *WatchOptions) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvFiles(o.EnvFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	d := &cfg.Deployment
	if flags.Changed("db") {
		d.DBPath = o.Database
	}
	if flags.Changed("redis-url") {
		d.RedisURL = o.RedisURL
	}
	if flags.Changed("metrics-addr") {
		d.MetricsAddr = o.MetricsAddr
	}
	if flags.Changed("brokers") {
		d.Kafka.Brokers = feed.ParseBrokers(o.Brokers)
	}
	if flags.Changed("topic") {
		d.Kafka.Topic = o.Topic
	}
	if flags.Changed("group") {
		d.Kafka.GroupID = o.GroupID
	}
	if flags.Changed("status-topic") {
		d.Kafka.StatusTopic = o.StatusTopic
	}
	return cfg, nil
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to load config", err)
	}
	dep := cfg.Deployment

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("opening database", "path", dep.DBPath)
	st, err := store.Open(dep.DBPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	lastSeq, err := st.MaxSeq(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read push log", err)
	}
	seq := guard.NewSequenceAt(lastSeq)

	m := metrics.NewGuardMetrics()
	guardOpts := []guard.Option{
		guard.WithLogger(logger),
		guard.WithSequence(seq),
		guard.WithObserver(m),
	}

	if dep.RedisURL != "" {
		ws, err := redisstore.Dial(ctx, dep.RedisURL, cfg.Guard.Window)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to connect to redis", err)
		}
		defer ws.Close()
		guardOpts = append(guardOpts, guard.WithWindowStore(ws))
		logger.Info("rate windows shared through redis")
	}

	var pusher guard.Pusher = st
	if dep.Kafka.Enabled() && dep.Kafka.StatusTopic != "" {
		w := feed.NewKafkaWriter(dep.Kafka.Brokers, dep.Kafka.StatusTopic)
		defer w.Close()
		pusher = feed.NewPublishingPusher(st, w)
		logger.Info("announcing status writes", "topic", dep.Kafka.StatusTopic)
	}

	g, err := guard.New(st, pusher, cfg.Guard, guardOpts...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid guard settings", err)
	}
	m.WatchGuard(g)

	if dep.MetricsAddr != "" {
		srv := serveMetrics(dep.MetricsAddr, m.Handler(), logger)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	go sweep(ctx, g, cfg.Guard.Window, logger)

	result := WatchResult{}
	if opts.Reconcile {
		orders, err := st.ListOrders(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to list orders", err)
		}
		for _, o := range orders {
			g.HandleSnapshot(o)
		}
		result.Reconciled = len(orders)
		logger.Info("startup reconciliation queued", "orders", len(orders))
	}

	reader, finite, closeReader, err := opts.openFeed(cmd, dep.Kafka)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to open feed", err)
	}
	defer closeReader()

	logger.Info("guard started", "db", dep.DBPath, "resume_seq", lastSeq)
	stats, runErr := feed.Run(ctx, reader, &storeHandler{store: st, guard: g, logger: logger}, logger)
	result.Delivered, result.Skipped = stats.Delivered, stats.Skipped

	if finite && runErr == nil {
		if err := g.Drain(ctx, drainInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("drain interrupted", "error", err)
		}
	}

	closeCtx, stop := context.WithTimeout(context.Background(), cfg.Guard.PushTimeout)
	defer stop()
	if err := g.Close(closeCtx); err != nil {
		logger.Warn("guard did not close cleanly", "error", err)
	}
	result.LastSeq = seq.Current()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return f.Fail(ExitFailure, ErrCodeInput, "feed failed", runErr)
	}
	logger.Info("guard stopped gracefully")
	return f.Success(result)
}

// openFeed picks Kafka when brokers are configured, otherwise JSON lines
// from --input or stdin. finite reports whether the feed ends on its own.
func (o *WatchOptions) openFeed(cmd *cobra.Command, k config.Kafka) (feed.Reader, bool, func(), error) {
	if k.Enabled() {
		r, err := feed.NewKafkaReader(feed.KafkaConfig{
			Brokers: k.Brokers,
			Topic:   k.Topic,
			GroupID: k.GroupID,
		})
		if err != nil {
			return nil, false, nil, err
		}
		return r, false, func() { _ = r.Close() }, nil
	}

	var in io.ReadCloser = io.NopCloser(cmd.InOrStdin())
	if o.Input != "" && o.Input != "-" {
		file, err := os.Open(o.Input)
		if err != nil {
			return nil, false, nil, err
		}
		in = file
	}
	return feed.NewJSONLReader(in), true, func() { _ = in.Close() }, nil
}

func serveMetrics(addr string, h http.Handler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// sweep drops expired marks and windows once per window until ctx ends.
func sweep(ctx context.Context, g *guard.Guard, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				logger.Debug("swept guard state", "removed", n)
			}
		}
	}
}

// storeHandler records a notification's items before handing it to the
// guard, so the guard's later reads see the same items it was told about.
type storeHandler struct {
	store  *store.Store
	guard  *guard.Guard
	logger *slog.Logger
}

// HandleNotification implements feed.Handler.
func (h *storeHandler) HandleNotification(ctx context.Context, orderID string, items []lineitem.Item) guard.Decision {
	if _, err := h.store.ReplaceItems(ctx, orderID, items); err != nil && !errors.Is(err, guard.ErrOrderNotFound) {
		h.logger.Warn("failed to record items", "order_id", orderID, "error", err)
	}
	return h.guard.HandleNotification(ctx, orderID, items)
}
