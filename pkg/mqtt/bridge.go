// Package mqtt publishes grill state to an MQTT broker and accepts commands
// from it.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Controller is the part of *gmg.Client reachable over MQTT.
type Controller interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	TogglePower(ctx context.Context) error
	SetGrillTemp(ctx context.Context, fahrenheit int) error
	SetFoodTemp(ctx context.Context, fahrenheit int) error
}

// State is the JSON document published on the state topic.
type State struct {
	DeviceID         string  `json:"device_id"`
	Model            string  `json:"model"`
	Firmware         string  `json:"firmware"`
	State            string  `json:"state"`
	IsOn             bool    `json:"is_on"`
	FanMode          bool    `json:"fan_mode"`
	GrillTemp        float64 `json:"grill_temp"`
	DesiredGrillTemp float64 `json:"desired_grill_temp"`
	FoodTemp         float64 `json:"food_temp"`
	DesiredFoodTemp  float64 `json:"desired_food_temp"`
	LowPellets       bool    `json:"low_pellets"`
	Timestamp        string  `json:"timestamp"`
}

// NewState flattens a smoker and its status for publishing.
func NewState(smoker *gmg.Smoker, status *gmg.Status, now time.Time) State {
	return State{
		DeviceID:         smoker.DeviceID,
		Model:            smoker.DeviceModel,
		Firmware:         smoker.Firmware,
		State:            status.State.String(),
		IsOn:             status.IsOn,
		FanMode:          status.FanModeActive,
		GrillTemp:        status.CurrentGrillTemp,
		DesiredGrillTemp: status.DesiredGrillTemp,
		FoodTemp:         status.CurrentFoodTemp,
		DesiredFoodTemp:  status.DesiredFoodTemp,
		LowPellets:       status.LowPelletAlarmActive,
		Timestamp:        now.UTC().Format(time.RFC3339),
	}
}

// Bridge connects one grill to an MQTT broker.
type Bridge struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
}

// Connect dials the broker, announces the grill as online and subscribes to
// its command topics. Commands run against controller using ctx.
func Connect(ctx context.Context, cfg config.MQTTConfig, smoker *gmg.Smoker, controller Controller) (*Bridge, error) {
	b := &Bridge{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix, DeviceID: smoker.DeviceID},
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	// Commands can take several retry intervals; don't stall the router.
	opts.SetOrderMatters(false)
	opts.SetWill(b.topics.Availability(), payloadOffline, byte(cfg.QoS), true)

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		command, ok := b.topics.CommandFromTopic(msg.Topic())
		if !ok {
			return
		}

		slog.InfoContext(ctx, "Received MQTT command", "command", command, "payload", string(msg.Payload()))
		if err := HandleCommand(ctx, controller, command, msg.Payload()); err != nil {
			slog.ErrorContext(ctx, "MQTT command failed", "command", command, "error", err)
		}
	}

	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		// Also runs after every reconnect; clean sessions lose subscriptions.
		c.Publish(b.topics.Availability(), byte(cfg.QoS), true, payloadOnline)
		c.Subscribe(b.topics.AllSet(), byte(cfg.QoS), handler)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		slog.WarnContext(ctx, "MQTT connection lost", "error", err)
	})

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	slog.InfoContext(ctx, "Connected to MQTT broker", "host", cfg.Host, "state-topic", b.topics.State())
	return b, nil
}

// ObserveStatus publishes the status as retained JSON.
func (b *Bridge) ObserveStatus(ctx context.Context, smoker *gmg.Smoker, status *gmg.Status) {
	payload, err := json.Marshal(NewState(smoker, status, time.Now()))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode MQTT state", "error", err)
		return
	}

	if err := b.publish(b.topics.State(), payload); err != nil {
		slog.ErrorContext(ctx, "Failed to publish MQTT state", "error", err)
	}
}

func (b *Bridge) publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, byte(b.cfg.QoS), true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close marks the grill offline and disconnects.
func (b *Bridge) Close() {
	if b.client.IsConnected() {
		b.publish(b.topics.Availability(), []byte(payloadOffline))
	}
	b.client.Disconnect(defaultDisconnectQuiesce)
}

// HandleCommand runs one command received on a set topic.
//
//	power       ON | OFF | TOGGLE
//	grill_temp  whole degrees Fahrenheit
//	food_temp   whole degrees Fahrenheit
func HandleCommand(ctx context.Context, controller Controller, command string, payload []byte) error {
	value := strings.TrimSpace(string(payload))

	switch command {
	case CommandPower:
		switch strings.ToUpper(value) {
		case "ON":
			return controller.TurnOn(ctx)
		case "OFF":
			return controller.TurnOff(ctx)
		case "TOGGLE":
			return controller.TogglePower(ctx)
		}
		return fmt.Errorf("%w: power expects ON, OFF or TOGGLE, got %q", ErrInvalidPayload, value)

	case CommandGrillTemp, CommandFoodTemp:
		f, err := strconv.Atoi(value)
		if err != nil || f <= 0 {
			return fmt.Errorf("%w: %s expects a positive whole number, got %q", ErrInvalidPayload, command, value)
		}
		if command == CommandGrillTemp {
			return controller.SetGrillTemp(ctx, f)
		}
		return controller.SetFoodTemp(ctx, f)
	}

	return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
}
