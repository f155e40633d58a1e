// Package main boots the Seat Reservation Service HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/seat-reservation-service/internal/catalog"
	"github.com/fairyhunter13/seat-reservation-service/internal/clock"
	"github.com/fairyhunter13/seat-reservation-service/internal/config"
	"github.com/fairyhunter13/seat-reservation-service/internal/hold"
	httpapi "github.com/fairyhunter13/seat-reservation-service/internal/http"
	"github.com/fairyhunter13/seat-reservation-service/internal/notify"
	"github.com/fairyhunter13/seat-reservation-service/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	obs.InitLogger(cfg.LogLevel, cfg.LogFormat)
	obs.Logger.Info("service_starting", "env", cfg.Environment, "hold_duration", cfg.HoldDuration)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	holds := hold.NewScheduler()
	holds.Start(ctx)

	pub, err := notify.New(ctx, cfg.Publisher)
	if err != nil {
		obs.Logger.Error("publisher_init_failed", "error", err)
		os.Exit(1)
	}

	cat := catalog.New(holds, clock.NewSystem(), pub,
		catalog.WithHoldDuration(cfg.HoldDuration),
		catalog.WithMaxTickets(cfg.MaxTicketsPerReservation),
		catalog.WithPublishTimeout(cfg.PublishTimeout),
	)
	if cfg.Seed.Enabled {
		if _, err := catalog.Seed(cat, time.Now(), cfg.Seed.SeatCount, cfg.Seed.ReleaseDelay); err != nil {
			obs.Logger.Error("seed_failed", "error", err)
			os.Exit(1)
		}
	}

	app := httpapi.NewApp(cfg, cat, holds)
	mux := httpapi.NewRouter(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}

	// Pending holds are dropped; seats are not persisted across restarts.
	holds.Stop()
	if err := pub.Close(); err != nil {
		obs.Logger.Warn("publisher_close_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}
