package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/engine"
	relayprom "github.com/fwojciec/relay/prometheus"
	"github.com/fwojciec/relay/terminal"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	errReplyFailed = errors.New("reply did not complete")
	errInterrupted = errors.New("interrupted")
)

// flags holds the persistent command-line flags.
type flags struct {
	configPath   string
	provider     string
	model        string
	apiKey       string
	baseURL      string
	storeDriver  string
	storePath    string
	conversation string
	logLevel     string
	metricsAddr  string
	trace        bool
	noSpinner    bool
}

// app carries the process environment so commands can run under test.
type app struct {
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	getenv     func(string) string
	interrupts chan os.Signal // nil: subscribe to os.Interrupt
	flags      flags
}

func newApp() *app {
	return &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		getenv: os.Getenv,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Stream chat replies from LLM providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", config.DefaultPath(), "Path to the YAML config file")
	f.StringVar(&a.flags.provider, "provider", "", "Provider ID (detected from API key variables if omitted)")
	f.StringVar(&a.flags.model, "model", "", "Model ID (default: provider entry in config)")
	f.StringVar(&a.flags.apiKey, "api-key", "", "API key (overrides the provider's environment variable)")
	f.StringVar(&a.flags.baseURL, "base-url", "", "API base URL (overrides the dialect default)")
	f.StringVar(&a.flags.storeDriver, "store", "", "Message store: json, sqlite or badger")
	f.StringVar(&a.flags.storePath, "store-path", "", "Message store location")
	f.StringVar(&a.flags.conversation, "conversation", "", "Conversation ID (a new one is generated if omitted)")
	f.StringVar(&a.flags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	f.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.BoolVar(&a.flags.trace, "trace", false, "Print session trace spans to stderr")
	f.BoolVar(&a.flags.noSpinner, "no-spinner", false, "Disable the loading spinner")

	root.AddCommand(newAskCmd(a), newChatCmd(a), newHistoryCmd(a))
	return root
}

// runtime is the wiring shared by every command.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	store    relay.MessageStore
	view     *terminal.Observer
	ctrl     *engine.Controller
	provider relay.ProviderConfig
	closers  []func()
}

// setup loads configuration and opens the store. When withProvider is set it
// also resolves the provider and builds the controller.
func (a *app) setup(withProvider bool) (*runtime, error) {
	logger, err := newLogger(a.errOut, a.flags.logLevel)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return nil, err
	}
	if a.flags.storeDriver != "" {
		cfg.Store.Driver = a.flags.storeDriver
	}
	if a.flags.storePath != "" {
		cfg.Store.Path = a.flags.storePath
	}

	rt := &runtime{cfg: cfg, logger: logger}
	store, err := openStore(cfg.Store.Driver, cfg.StorePath(), logger)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store failed", "error", err)
		}
	})

	var viewOpts []terminal.Option
	if !a.flags.noSpinner {
		viewOpts = append(viewOpts, terminal.WithSpinner(terminal.NewSpinner(a.errOut)))
	}
	rt.view = terminal.New(a.out, viewOpts...)

	if !withProvider {
		return rt, nil
	}

	rt.provider, err = cfg.Resolve(config.Overrides{
		Provider: a.flags.provider,
		Model:    a.flags.model,
		APIKey:   a.flags.apiKey,
		BaseURL:  a.flags.baseURL,
	}, a.getenv)
	if err != nil {
		rt.close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics := relayprom.NewObserver(reg)
	if a.flags.metricsAddr != "" {
		rt.serveMetrics(a.flags.metricsAddr, reg)
	}

	opts := []engine.Option{
		engine.WithHTTPClient(newHTTPClient(cfg.RequestTimeout)),
		engine.WithObserver(relay.Observers(rt.view, metrics)),
		engine.WithLogger(logger),
		engine.WithFlushInterval(cfg.FlushInterval),
	}
	if a.flags.trace {
		tracer, shutdown, err := newTracer(a.errOut)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, shutdown)
		opts = append(opts, engine.WithTracer(tracer))
	}
	rt.ctrl = engine.New(store, opts...)
	return rt, nil
}

// newHTTPClient bounds the wait for response headers only. A reply may
// stream for longer than headerTimeout; zero disables the bound.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: tr}
}

func (rt *runtime) serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	rt.closers = append(rt.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// send commits the user turn and starts streaming the reply.
func (rt *runtime) send(ctx context.Context, conversationID, text string) (*engine.Session, error) {
	prior, err := rt.store.List(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	now := time.Now()
	turn := relay.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           relay.RoleUser,
		Content:        text,
		Status:         relay.StatusCompleted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := rt.store.Insert(ctx, turn); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	if err := rt.store.Save(ctx); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	return rt.ctrl.Start(ctx, rt.provider, conversationID, historyFor(append(prior, turn)))
}

// historyFor selects the messages sent back to the provider as context.
// Assistant replies that failed or never produced text are skipped.
func historyFor(msgs []relay.Message) []relay.Message {
	out := make([]relay.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == relay.RoleAssistant {
			if m.Content == "" {
				continue
			}
			if m.Status != relay.StatusCompleted && m.Status != relay.StatusCancelled {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func (a *app) conversationID() string {
	if a.flags.conversation != "" {
		return a.flags.conversation
	}
	return uuid.NewString()
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
