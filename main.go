package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/daemon"
)

func main() {
	if err := realMain(); err != nil {
		log.Fatal(err)
	}
}

func realMain() error {
	cfg, err := config.Load(os.Getenv("GMG_CONFIG"))
	if err != nil {
		return err
	}

	daemon.SetupLogging(os.Stdout, cfg.Logging)
	slog.Info("Starting grill daemon", "poll-seconds", cfg.PollSeconds, "homekit", cfg.HomeKit.Enabled, "mqtt", cfg.MQTT.Enabled)

	// Setup a listener for interrupts and SIGTERM signals
	// to stop the server.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c
		slog.Info("Interrupt signal received")
		// Stop delivering signals.
		signal.Stop(c)
		cancel()
	}()

	return daemon.Run(ctx, cfg)
}
