// Package daemon runs a grill monitor with its HomeKit, MQTT and telemetry
// sinks as a single long-running process.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/homekit"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/monitor"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/mqtt"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Run finds the grill and serves it until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	client := gmg.NewClient(cfg.ClientConfig(), gmg.WithLogger(slog.Default()))

	slog.InfoContext(ctx, "Looking for grill", "host", client.Host(), "port", client.Port())
	smoker, err := gmg.FetchSmoker(ctx, client)
	if err != nil {
		return errors.Wrap(err, "fetching grill")
	}

	ctx = slogctx.Append(ctx, "ip", smoker.IPAddress, "device-id", smoker.DeviceID)
	slog.InfoContext(ctx, "Found grill", "model", smoker.DeviceModel, "firmware", smoker.Firmware)

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()

	var observers []monitor.Observer

	if cfg.Metrics.Enabled {
		metrics := telemetry.NewMetrics()
		observers = append(observers, metrics)
		p.Go(func(ctx context.Context) error {
			return serveMetrics(ctx, cfg.Metrics.Listen, metrics.Handler())
		})
	}

	if cfg.InfluxDB.Enabled {
		sink, err := telemetry.ConnectInflux(ctx, cfg.InfluxDB)
		if err != nil {
			return errors.Wrap(err, "connecting to influxdb")
		}
		defer sink.Close()
		observers = append(observers, sink)
	}

	if cfg.MQTT.Enabled {
		bridge, err := mqtt.Connect(ctx, cfg.MQTT, smoker, client)
		if err != nil {
			return errors.Wrap(err, "connecting to mqtt")
		}
		defer bridge.Close()
		observers = append(observers, bridge)
	}

	if cfg.HomeKit.Enabled {
		controller := homekit.NewGrillController(ctx, smoker, client)
		observers = append(observers, controller)
		debug := ParseLevel(cfg.Logging.Level) == slog.LevelDebug
		p.Go(func(ctx context.Context) error {
			return controller.Serve(ctx, cfg.HomeKit, smoker, debug)
		})
	}

	m := monitor.New(client, smoker, cfg.PollInterval(), observers...)
	p.Go(m.Run)

	return p.Wait()
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.InfoContext(ctx, "Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving metrics")
	}
	return nil
}
