package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/auth"
	"github.com/abdelhadiDevWeb/labocart/internal/cartstore"
	"github.com/abdelhadiDevWeb/labocart/internal/cartview"
	"github.com/abdelhadiDevWeb/labocart/internal/catalog"
	"github.com/abdelhadiDevWeb/labocart/internal/config"
	"github.com/abdelhadiDevWeb/labocart/internal/health"
	"github.com/abdelhadiDevWeb/labocart/internal/httpapi"
	"github.com/abdelhadiDevWeb/labocart/internal/logging"
	"github.com/abdelhadiDevWeb/labocart/internal/poller"
	"github.com/abdelhadiDevWeb/labocart/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	boot := logging.New("info", "json")
	cfg := config.Load(boot)
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared storage, the stand-in for the browser's localStorage
	store, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage.Driver, err)
	}
	defer store.Close()
	log.Infof("Using %s storage", cfg.Storage.Driver)

	products, err := catalog.Open(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		log.Fatalf("Failed to open %s catalog: %v", cfg.CatalogDriver, err)
	}
	defer products.Close()

	cart := cartstore.New(store, cartstore.WithKey(cfg.CartKey), cartstore.WithLogger(log))
	if err := cart.Start(ctx); err != nil {
		log.Fatalf("Failed to start cart store: %v", err)
	}
	defer cart.Close()

	panel := cartview.Mount(cart, cartview.WithTaxRate(cfg.TaxRate), cartview.WithLogger(log))
	defer panel.Unmount()

	session := auth.NewSession(store, cart, log)

	var publisher httpapi.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		pub := poller.NewPublisher(cfg.CartKey, cfg.KafkaTopic, cfg.KafkaBrokers...).WithSource(cart.ID())
		defer pub.Close()
		publisher = pub

		p := poller.NewSessionPoller(poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			// one group per instance so every instance sees every event
			GroupID: poller.DefaultGroupID + "-" + cart.ID(),
			CartKey: cfg.CartKey,
			Self:    cart.ID(),
		}, cart, session, log)
		defer p.Close()
		go p.Run(ctx)
		log.Infof("Session poller listening on %s", cfg.KafkaTopic)
	}

	// gRPC health
	healthSvc := health.NewService(log, 2*time.Second).Add("storage", store)
	if pinger, ok := products.(health.Pinger); ok {
		healthSvc.Add("catalog", pinger)
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSvc)
	go func() {
		log.Infof("gRPC health server listening on :%s", cfg.GRPCHealthPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("Failed to serve gRPC: %v", err)
		}
	}()

	router := httpapi.NewRouter(httpapi.Deps{
		Catalog:        products,
		Store:          cart,
		Panel:          panel,
		Session:        session,
		Storage:        store,
		Publisher:      publisher,
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     otelhttp.NewHandler(router, "cartd"),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Infof("Cart API starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}
	grpcServer.GracefulStop()

	log.Info("server exited")
}
