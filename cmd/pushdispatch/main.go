// Command pushdispatch runs the push notification dispatcher. It reads
// document lifecycle events from NATS and/or HTTP and delivers the
// resulting notifications through Firebase Cloud Messaging.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/bjaus/pushdispatch"
	"github.com/bjaus/pushdispatch/engine"
	"github.com/bjaus/pushdispatch/hygiene"
	"github.com/bjaus/pushdispatch/internal/config"
	"github.com/bjaus/pushdispatch/internal/dedupe"
	"github.com/bjaus/pushdispatch/internal/ingest"
	"github.com/bjaus/pushdispatch/internal/logx"
	"github.com/bjaus/pushdispatch/internal/metrics"
	"github.com/bjaus/pushdispatch/internal/telemetry"
	"github.com/bjaus/pushdispatch/payload"
	"github.com/bjaus/pushdispatch/recipient"
	"github.com/bjaus/pushdispatch/store"
	fsstore "github.com/bjaus/pushdispatch/store/firestore"
	"github.com/bjaus/pushdispatch/store/sqlite"
	"github.com/bjaus/pushdispatch/transport"
	"github.com/bjaus/pushdispatch/transport/fcm"
	"github.com/bjaus/pushdispatch/trigger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "pushdispatch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pushdispatch", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	dryRun := fs.Bool("dry-run", false, "log messages instead of sending them")
	httpAddr := fs.String("http-addr", "", "HTTP listen address (overrides PUSH_HTTP_ADDR)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pushdispatch [flags]")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, config.Usage())
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *dryRun {
			c.Transport = config.TransportLog
		}
		if *httpAddr != "" {
			c.HTTP.Addr = *httpAddr
		}
	})
	if err != nil {
		return err
	}

	logger := logx.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	ctx = logx.WithLogger(ctx, logger)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	deps, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	m := metrics.New(prometheus.DefaultRegisterer)

	opts := routerHooks()
	opts = append(opts, pushdispatch.WithOnResult(m.OnResult))
	if cfg.Dedupe.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Dedupe.RedisAddr})
		defer rdb.Close()
		guard := dedupe.NewRedis(rdb, cfg.Dedupe.Prefix, cfg.Dedupe.TTL)
		opts = append(opts, pushdispatch.WithFilter(dedupe.Filter(guard, m)))
	}
	router := pushdispatch.New(opts...)

	eng := engine.New(
		recipient.New(deps.store, recipient.WithConcurrency(cfg.Concurrency)),
		deps.transport,
		hygiene.New(deps.store),
		engine.WithObserver(m),
	)
	builder := payload.New(payload.Config{
		AppName:     cfg.Payload.AppName,
		ClickAction: cfg.Payload.ClickAction,
		ChannelID:   cfg.Payload.ChannelID,
		Badge:       cfg.Payload.Badge,
	})
	trigger.Register(router, eng, builder)

	logger.Info("routes registered", "routes", router.Routes())

	g, ctx := errgroup.WithContext(ctx)
	handlerOpts := []ingest.HandlerOption{ingest.WithMetrics(promhttp.Handler())}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("pushdispatch"))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()

		sub, err := ingest.Subscribe(ctx, nc, cfg.NATS.Subject, cfg.NATS.Queue, router)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, ingest.WithHealthCheck("nats", func() error {
			if !nc.IsConnected() {
				return errors.New(nc.Status().String())
			}
			return nil
		}))
		logger.Info("subscribed", "subject", cfg.NATS.Subject, "queue", cfg.NATS.Queue)

		g.Go(func() error {
			<-ctx.Done()
			return sub.Drain()
		})
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           otelhttp.NewHandler(ingest.NewHandler(router, handlerOpts...), "pushdispatch"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	logger.Info("stopped")
	return err
}

// deps holds the store and transport chosen by the config.
type deps struct {
	store     store.Store
	transport transport.Transport
	closers   []func() error
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Warn("close", "error", err)
		}
	}
}

func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{}

	var app *firebase.App
	if cfg.Store.Backend == config.StoreFirestore || cfg.Transport == config.TransportFCM {
		var clientOpts []option.ClientOption
		if cfg.Firebase.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		}
		var err error
		app, err = firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("init firebase: %w", err)
		}
	}

	switch cfg.Store.Backend {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("init firestore: %w", err)
		}
		d.store = fsstore.New(client)
		d.closers = append(d.closers, client.Close)
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		d.store = s
		d.closers = append(d.closers, s.Close)
	default:
		d.store = store.NewMemory()
	}

	switch cfg.Transport {
	case config.TransportFCM:
		client, err := app.Messaging(ctx)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("init messaging: %w", err)
		}
		d.transport = fcm.New(client)
	default:
		d.transport = transport.NewLogging()
	}

	return d, nil
}
