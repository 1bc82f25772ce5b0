package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/daemon"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

func main() {
	app := &cli.App{
		Name:  "gmg",
		Usage: "Remote control for Green Mountain Grills",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "IP address of the grill, discovered by broadcast when empty",
				EnvVars: []string{"GMG_GRILL_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "UDP port of the grill",
				Value:   gmg.DefaultPort,
				EnvVars: []string{"GMG_GRILL_PORT"},
			},
			&cli.IntFlag{
				Name:  "tries",
				Usage: "Transmissions before giving up",
				Value: gmg.DefaultTries,
			},
			&cli.DurationFlag{
				Name:  "retry-interval",
				Usage: "Time between transmissions",
				Value: gmg.DefaultRetryInterval,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"GMG_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			daemon.SetupLogging(os.Stderr, config.LoggingConfig{Level: c.String("log-level")})
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "discover",
				Usage: "Find a grill on the local network",
				Action: func(c *cli.Context) error {
					client := gmg.NewClient(gmg.Config{
						Port:          c.Int("port"),
						Tries:         c.Int("tries"),
						RetryInterval: c.Duration("retry-interval"),
					})

					ip, err := client.Discover(c.Context)
					if err != nil {
						slog.Error("Error searching for grill", "error", err)
						return err
					}

					fmt.Printf("Found grill at %s\n", ip)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Get the status of the grill",
				Action: func(c *cli.Context) error {
					status, err := newClient(c).Status(c.Context)
					if err != nil {
						slog.Error("Failed to get grill status", "error", err)
						return err
					}

					fmt.Printf("Grill:\n\tState: %s\n\tGrill Temperature: %s\n\tTarget Grill Temperature: %s\n\tFood Temperature: %s\n\tTarget Food Temperature: %s\n\tLow Pellets: %s\n",
						status.State,
						formatTemperature(status.CurrentGrillTemp),
						formatTemperature(status.DesiredGrillTemp),
						formatTemperature(status.CurrentFoodTemp),
						formatTemperature(status.DesiredFoodTemp),
						formatBoolean(status.LowPelletAlarmActive),
					)
					return nil
				},
			},
			{
				Name:  "info",
				Usage: "Show the grill's id, model and firmware",
				Action: func(c *cli.Context) error {
					client := newClient(c)
					smoker, err := gmg.FetchSmoker(c.Context, client)
					if err != nil {
						slog.Error("Failed to get grill info", "error", err)
						return err
					}

					fmt.Printf("Grill: %s\n\tID: %s\n\tModel: %s\n\tFirmware: %s\n\tUUID: %s\n",
						smoker.IPAddress, smoker.DeviceID, smoker.DeviceModel, smoker.Firmware, smoker.UUID())
					return nil
				},
			},
			{
				Name:  "power-on",
				Usage: "Power on the grill",
				Action: func(c *cli.Context) error {
					fmt.Println("Powering on the grill...")

					if err := newClient(c).TurnOn(c.Context); err != nil {
						slog.Error("Failed to power on grill", "error", err)
						return err
					}

					fmt.Println("Grill powered on")
					return nil
				},
			},
			{
				Name:  "power-off",
				Usage: "Power off the grill",
				Action: func(c *cli.Context) error {
					fmt.Println("Powering off the grill...")

					if err := newClient(c).TurnOff(c.Context); err != nil {
						slog.Error("Failed to power off grill", "error", err)
						return err
					}

					fmt.Println("Grill powered off")
					return nil
				},
			},
			{
				Name:  "toggle",
				Usage: "Toggle grill power",
				Action: func(c *cli.Context) error {
					if err := newClient(c).TogglePower(c.Context); err != nil {
						slog.Error("Failed to toggle grill power", "error", err)
						return err
					}
					return nil
				},
			},
			{
				Name:  "set-grill-temp",
				Usage: "Set the target grill temperature",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "temp",
						Usage:    "Temperature to set, in whole degrees Fahrenheit",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					fmt.Println("Setting grill temperature...")

					if err := newClient(c).SetGrillTemp(c.Context, c.Int("temp")); err != nil {
						slog.Error("Failed to set grill temperature", "error", err)
						return err
					}

					fmt.Printf("Grill temperature set to %dºF\n", c.Int("temp"))
					return nil
				},
			},
			{
				Name:  "set-food-temp",
				Usage: "Set the target food probe temperature",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "temp",
						Usage:    "Temperature to set, in whole degrees Fahrenheit",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					fmt.Println("Setting food temperature...")

					if err := newClient(c).SetFoodTemp(c.Context, c.Int("temp")); err != nil {
						slog.Error("Failed to set food temperature", "error", err)
						return err
					}

					fmt.Printf("Food temperature set to %dºF\n", c.Int("temp"))
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "Run the HomeKit, MQTT and metrics daemon",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Usage:   "Path to the YAML config file",
						EnvVars: []string{"GMG_CONFIG"},
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if c.IsSet("host") {
						cfg.Grill.Host = c.String("host")
					}
					daemon.SetupLogging(os.Stdout, cfg.Logging)

					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					return daemon.Run(ctx, cfg)
				},
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(c *cli.Context) *gmg.Client {
	return gmg.NewClient(gmg.Config{
		Host:          c.String("host"),
		Port:          c.Int("port"),
		Tries:         c.Int("tries"),
		RetryInterval: c.Duration("retry-interval"),
	})
}

func formatTemperature(celsius float64) string {
	return fmt.Sprintf("%.1fºC (%dºF)", celsius, gmg.CelsiusToFahrenheit(celsius))
}

func formatBoolean(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
