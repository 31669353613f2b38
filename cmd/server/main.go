package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"food-order-system/internal/checkout"
	"food-order-system/internal/common/config"
	"food-order-system/internal/common/db"
	"food-order-system/internal/common/httpx"
	"food-order-system/internal/common/logger"
	"food-order-system/internal/common/metrics"
	"food-order-system/internal/common/mq"
	"food-order-system/internal/notify"
	"food-order-system/internal/orders"
	"food-order-system/internal/payment"
)

func main() {
	mode := flag.String("mode", "server", "server | notification-subscriber")
	cfgPath := flag.String("config", "", "path to YAML config (default: config.yaml)")
	port := flag.Int("port", 0, "override http.port from config")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *cfgPath
	if path == "" {
		p, err := config.FindConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "no config file found; pass -config")
			os.Exit(2)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	switch *mode {
	case "server":
		lg.Info("service_started", map[string]any{"service": "server", "port": cfg.HTTP.Port})
		if err := runServer(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "notification-subscriber":
		lg.Info("service_started", map[string]any{"service": "notification-subscriber"})
		if err := runSubscriber(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "-mode must be: server | notification-subscriber")
		os.Exit(2)
	}
}

func runServer(ctx context.Context, cfg config.App) error {
	conn, err := db.Connect(ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Pass, cfg.Database.Name)
	if err != nil {
		return err
	}
	defer conn.Close()

	mqc, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass)
	if err != nil {
		return err
	}
	defer mqc.Close()
	if err := mqc.DeclareTopology(); err != nil {
		return err
	}

	window := time.Duration(cfg.Payment.AuthWindowSeconds) * time.Second
	sweep := time.Duration(cfg.Payment.CaptureSweepSecond) * time.Second

	m := metrics.New("server")
	gateway := payment.NewLocalGateway(cfg.Payment.WebhookSecret)
	notifier := notify.New(conn.Pool, mqc, logger.New("notify"))

	ordersRepo := orders.NewRepository(conn.Pool)
	checkoutRepo := checkout.NewRepository(conn.Pool)

	machine := payment.NewMachine(gateway, ordersRepo, m, logger.New("payment"), window, cfg.Payment.Currency)
	reconciler := payment.NewReconciler(gateway, ordersRepo, notifier, m, logger.New("webhook"), window)
	checkoutSvc := checkout.NewService(checkoutRepo, machine, ordersRepo, notifier, m, logger.New("checkout"))
	ordersSvc := orders.NewService(ordersRepo, gateway, notifier, logger.New("orders"))

	mux := http.NewServeMux()
	checkout.NewHandler(checkoutSvc).Register(mux)
	orders.NewHandler(ordersSvc).Register(mux)
	payment.NewHandler(machine, reconciler).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := httpx.New(":"+strconv.Itoa(cfg.HTTP.Port), mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return machine.RunCaptureSweep(gctx, sweep) })
	return g.Wait()
}

func runSubscriber(ctx context.Context, cfg config.App) error {
	mqc, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass)
	if err != nil {
		return err
	}
	defer mqc.Close()
	if err := mqc.DeclareTopology(); err != nil {
		return err
	}
	return notify.RunSubscriber(ctx, mqc, logger.New("notification-subscriber"))
}
