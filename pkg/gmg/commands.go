package gmg

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

// Command is an ASCII command token understood by the grill controller.
type Command string

const (
	CommandPowerOn   Command = "UK001"
	CommandPowerOff  Command = "UK004"
	CommandGetStatus Command = "UR001"
	CommandGetModel  Command = "UN"
	CommandGetID     Command = "UL"

	// ResponseOK is the acknowledgement sent for power and temperature commands.
	ResponseOK = "OK"
)

// SetGrillTemperature builds the command setting the grill target in whole degrees Fahrenheit.
func SetGrillTemperature(fahrenheit int) Command {
	return Command("UT" + strconv.Itoa(fahrenheit))
}

// SetFoodTemperature builds the command setting the food probe target in whole degrees Fahrenheit.
func SetFoodTemperature(fahrenheit int) Command {
	return Command("UF" + strconv.Itoa(fahrenheit))
}

// Bytes returns the framed datagram for the command.
func (c Command) Bytes() []byte {
	return []byte(string(c) + "!\n")
}

func (c Command) String() string {
	return string(c)
}

// Status fetches and decodes the current grill status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status(ctx)
}

// ID returns the controller's self-reported device identifier.
func (c *Client) ID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, CommandGetID)
	if err != nil {
		return "", errors.Wrap(err, "getting grill id")
	}

	return resp.String(), nil
}

// ModelAndFirmware returns the grill model name and firmware version.
func (c *Client) ModelAndFirmware(ctx context.Context) (model, firmware string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, CommandGetModel)
	if err != nil {
		return "", "", errors.Wrap(err, "getting grill model")
	}

	model, firmware = ParseModel(string(resp.Data))
	return model, firmware, nil
}

// TurnOn powers the grill on. It is a no-op when the grill is already on and
// fails with ErrInvalidState while fan mode is active.
func (c *Client) TurnOn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, err := c.status(ctx)
	if err != nil {
		return err
	}

	return c.turnOn(ctx, status)
}

// TurnOff powers the grill off. It is a no-op when the grill is already off.
func (c *Client) TurnOff(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, err := c.status(ctx)
	if err != nil {
		return err
	}

	return c.turnOff(ctx, status)
}

// TogglePower turns the grill off when it is on, and on otherwise.
func (c *Client) TogglePower(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, err := c.status(ctx)
	if err != nil {
		return err
	}

	if status.IsOn {
		return c.turnOff(ctx, status)
	}
	return c.turnOn(ctx, status)
}

// SetGrillTemp sets the grill target temperature in degrees Fahrenheit.
func (c *Client) SetGrillTemp(ctx context.Context, fahrenheit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, err := c.status(ctx)
	if err != nil {
		return err
	}

	if !status.IsOn {
		err := errors.Wrap(ErrInvalidState, "cannot set grill temperature while the grill is off")
		c.logger.ErrorContext(ctx, err.Error(), "state", status.State)
		return err
	}

	want := FahrenheitToCelsius(float64(fahrenheit))
	return c.command(ctx, SetGrillTemperature(fahrenheit), func(s *Status) bool {
		return s.DesiredGrillTemp == want
	})
}

// SetFoodTemp sets the food probe target temperature in degrees Fahrenheit.
func (c *Client) SetFoodTemp(ctx context.Context, fahrenheit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, err := c.status(ctx)
	if err != nil {
		return err
	}

	if !status.IsOn {
		err := errors.Wrap(ErrInvalidState, "cannot set food temperature while the grill is off")
		c.logger.ErrorContext(ctx, err.Error(), "state", status.State)
		return err
	}

	want := FahrenheitToCelsius(float64(fahrenheit))
	return c.command(ctx, SetFoodTemperature(fahrenheit), func(s *Status) bool {
		return s.DesiredFoodTemp == want
	})
}

func (c *Client) status(ctx context.Context) (*Status, error) {
	resp, err := c.send(ctx, CommandGetStatus)
	if err != nil {
		return nil, errors.Wrap(err, "getting grill status")
	}

	status, err := DecodeStatus(resp.Data)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode grill status", "error", err, "bytes", len(resp.Data))
		return nil, err
	}

	return status, nil
}

func (c *Client) turnOn(ctx context.Context, status *Status) error {
	if status.IsOn {
		return nil
	}

	if status.FanModeActive {
		err := errors.Wrap(ErrInvalidState, "cannot start grill while fan mode is active")
		c.logger.ErrorContext(ctx, err.Error())
		return err
	}

	return c.command(ctx, CommandPowerOn, func(s *Status) bool { return s.IsOn })
}

func (c *Client) turnOff(ctx context.Context, status *Status) error {
	if !status.IsOn {
		return nil
	}

	return c.command(ctx, CommandPowerOff, func(s *Status) bool { return !s.IsOn })
}

// command sends cmd, requires the literal OK acknowledgement and then
// re-fetches the status to confirm the change took effect.
func (c *Client) command(ctx context.Context, cmd Command, applied func(*Status) bool) error {
	resp, err := c.send(ctx, cmd)
	if err != nil {
		return errors.Wrapf(err, "sending %s", cmd)
	}

	if got := string(resp.Data); got != ResponseOK {
		err := errors.Wrapf(ErrProtocol, "grill responded to %s with non OK status %q", cmd, got)
		c.logger.ErrorContext(ctx, err.Error())
		return err
	}

	status, err := c.status(ctx)
	if err != nil {
		return errors.Wrapf(err, "verifying %s", cmd)
	}

	if !applied(status) {
		err := errors.Wrapf(ErrProtocol, "grill acknowledged %s but reported state did not change", cmd)
		c.logger.ErrorContext(ctx, err.Error(), "status", status.Hex)
		return err
	}

	return nil
}
