package homekit

import (
	"context"
	syslog "log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/log"
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

const manufacturer = "Green Mountain Grills"

const (
	maxGrillTemp = 300
	maxFoodTemp  = 260
)

// Controller is the part of *gmg.Client the accessory drives.
type Controller interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetGrillTemp(ctx context.Context, fahrenheit int) error
	SetFoodTemp(ctx context.Context, fahrenheit int) error
}

type (
	GrillController struct {
		controller Controller
		accessory  *accessory.A

		power   *service.Switch
		grill   *service.Thermostat
		food    *service.Thermostat
		pellets *service.SmokeSensor
		fanMode *service.Fan

		mu     sync.RWMutex
		status *gmg.Status
	}
)

// NewGrillController builds the HomeKit accessory for smoker. Remote writes
// from the Home app are forwarded to controller.
func NewGrillController(ctx context.Context, smoker *gmg.Smoker, controller Controller) *GrillController {
	gc := &GrillController{
		controller: controller,
		status:     smoker.Status,
	}

	a := accessory.New(accessory.Info{
		Name:         smoker.DeviceModel,
		SerialNumber: smoker.DeviceID,
		Manufacturer: manufacturer,
		Model:        smoker.DeviceModel,
		Firmware:     smoker.Firmware,
	}, accessory.TypeThermostat)

	gc.power = service.NewSwitch()
	addName(gc.power.S, "Grill Power")
	gc.power.On.OnSetRemoteValue(func(on bool) error {
		slog.InfoContext(ctx, "Grill Power Set", "value", on)
		return gc.setPower(ctx, on)
	})

	gc.grill = service.NewThermostat()
	addName(gc.grill.S, "Grill Temp")
	gc.grill.TemperatureDisplayUnits.SetValue(characteristic.TemperatureDisplayUnitsFahrenheit)
	gc.grill.CurrentTemperature.SetMaxValue(maxGrillTemp)
	gc.grill.TargetTemperature.SetMinValue(gmg.SentinelTemperature)
	gc.grill.TargetTemperature.SetMaxValue(maxGrillTemp)
	gc.grill.TargetTemperature.SetStepValue(0.5)
	gc.grill.TargetHeatingCoolingState.ValidVals = []int{characteristic.TargetHeatingCoolingStateHeat, characteristic.TargetHeatingCoolingStateOff}
	gc.grill.TargetHeatingCoolingState.OnSetRemoteValue(func(v int) error {
		slog.InfoContext(ctx, "Grill TargetHeatingCoolingState Set", "value", v)
		return gc.setPower(ctx, v == characteristic.TargetHeatingCoolingStateHeat)
	})
	gc.grill.TargetTemperature.OnSetRemoteValue(func(v float64) error {
		slog.InfoContext(ctx, "Grill Target Temperature Set", "value", v)
		return gc.setGrillTemp(ctx, v)
	})

	gc.food = service.NewThermostat()
	addName(gc.food.S, "Food Temp")
	gc.food.TemperatureDisplayUnits.SetValue(characteristic.TemperatureDisplayUnitsFahrenheit)
	gc.food.CurrentTemperature.SetMinValue(gmg.FahrenheitToCelsius(0))
	gc.food.CurrentTemperature.SetMaxValue(maxFoodTemp)
	gc.food.TargetTemperature.SetMinValue(gmg.SentinelTemperature)
	gc.food.TargetTemperature.SetMaxValue(maxFoodTemp)
	gc.food.TargetTemperature.SetStepValue(0.5)
	gc.food.TargetHeatingCoolingState.ValidVals = []int{characteristic.TargetHeatingCoolingStateHeat, characteristic.TargetHeatingCoolingStateOff}
	gc.food.TargetTemperature.OnSetRemoteValue(func(v float64) error {
		slog.InfoContext(ctx, "Food Target Temperature Set", "value", v)
		return gc.setFoodTemp(ctx, v)
	})

	gc.pellets = service.NewSmokeSensor()
	addName(gc.pellets.S, "Pellet Low Alert")

	gc.fanMode = service.NewFan()
	addName(gc.fanMode.S, "Fan Mode")
	// Fan mode is entered on the grill itself.
	gc.fanMode.On.OnSetRemoteValue(func(bool) error {
		return errors.Wrap(gmg.ErrInvalidState, "fan mode is read only")
	})

	a.AddS(gc.power.S)
	a.AddS(gc.grill.S)
	a.AddS(gc.food.S)
	a.AddS(gc.pellets.S)
	a.AddS(gc.fanMode.S)

	gc.accessory = a

	if smoker.Status != nil {
		if err := gc.apply(smoker.Status); err != nil {
			slog.ErrorContext(ctx, "Failed to apply initial grill status", "error", err)
		}
	}

	return gc
}

func addName(s *service.S, name string) {
	n := characteristic.NewName()
	n.SetValue(name)
	s.AddC(n.C)
}

// Accessory returns the HAP accessory.
func (gc *GrillController) Accessory() *accessory.A {
	return gc.accessory
}

// ObserveStatus mirrors a fresh grill status into the accessory.
func (gc *GrillController) ObserveStatus(ctx context.Context, _ *gmg.Smoker, status *gmg.Status) {
	if err := gc.apply(status); err != nil {
		slog.ErrorContext(ctx, "Failed to update accessory", "error", err)
	}
}

func (gc *GrillController) apply(status *gmg.Status) error {
	gc.mu.Lock()
	gc.status = status
	gc.mu.Unlock()

	gc.power.On.SetValue(status.IsOn)
	gc.fanMode.On.SetValue(status.FanModeActive)

	smoke := characteristic.SmokeDetectedSmokeNotDetected
	if status.LowPelletAlarmActive {
		smoke = characteristic.SmokeDetectedSmokeDetected
	}
	if err := gc.pellets.SmokeDetected.SetValue(smoke); err != nil {
		return errors.Wrap(err, "setting smoke detected")
	}

	th := gc.grill
	th.CurrentTemperature.SetValue(status.CurrentGrillTemp)
	th.TargetTemperature.SetValue(status.DesiredGrillTemp)

	current, target := grillHeatingCoolingState(status)
	if err := th.CurrentHeatingCoolingState.SetValue(current); err != nil {
		return errors.Wrap(err, "setting current heating cooling state")
	}
	if err := th.TargetHeatingCoolingState.SetValue(target); err != nil {
		return errors.Wrap(err, "setting target heating cooling state")
	}

	food := gc.food
	food.CurrentTemperature.SetValue(status.CurrentFoodTemp)
	food.TargetTemperature.SetValue(status.DesiredFoodTemp)

	probe := foodProbeState(status)
	if err := food.CurrentHeatingCoolingState.SetValue(probe); err != nil {
		return errors.Wrap(err, "setting food probe state")
	}
	if err := food.TargetHeatingCoolingState.SetValue(probe); err != nil {
		return errors.Wrap(err, "setting food probe target state")
	}

	return nil
}

func grillHeatingCoolingState(status *gmg.Status) (current, target int) {
	switch {
	case status.IsOn:
		return characteristic.CurrentHeatingCoolingStateHeat, characteristic.TargetHeatingCoolingStateHeat
	case status.FanModeActive:
		return characteristic.CurrentHeatingCoolingStateCool, characteristic.TargetHeatingCoolingStateOff
	default:
		return characteristic.CurrentHeatingCoolingStateOff, characteristic.TargetHeatingCoolingStateOff
	}
}

// The grill reports the sentinel as the food target when no probe target is set.
func foodProbeState(status *gmg.Status) int {
	if status.DesiredFoodTemp == gmg.SentinelTemperature {
		return characteristic.CurrentHeatingCoolingStateOff
	}
	return characteristic.CurrentHeatingCoolingStateHeat
}

func (gc *GrillController) lastStatus() *gmg.Status {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return gc.status
}

func (gc *GrillController) setPower(ctx context.Context, on bool) error {
	if status := gc.lastStatus(); status != nil {
		if on && (status.IsOn || status.FanModeActive) {
			return nil
		}
		if !on && !status.IsOn {
			return nil
		}
	}

	if on {
		if err := gc.controller.TurnOn(ctx); err != nil {
			return errors.Wrap(err, "turning on grill")
		}
		return nil
	}

	if err := gc.controller.TurnOff(ctx); err != nil {
		return errors.Wrap(err, "turning off grill")
	}
	return nil
}

func (gc *GrillController) setGrillTemp(ctx context.Context, celsius float64) error {
	f := gmg.CelsiusToFahrenheit(celsius)
	slog.InfoContext(ctx, "Setting grill temperature", "celsius", celsius, "fahrenheit", f)

	if err := gc.controller.SetGrillTemp(ctx, f); err != nil {
		slog.ErrorContext(ctx, "Failed to set grill temperature", "error", err, "temperature", f)
		return errors.Wrap(err, "setting grill temperature")
	}
	return nil
}

func (gc *GrillController) setFoodTemp(ctx context.Context, celsius float64) error {
	f := gmg.CelsiusToFahrenheit(celsius)
	slog.InfoContext(ctx, "Setting food temperature", "celsius", celsius, "fahrenheit", f)

	if err := gc.controller.SetFoodTemp(ctx, f); err != nil {
		slog.ErrorContext(ctx, "Failed to set food temperature", "error", err, "temperature", f)
		return errors.Wrap(err, "setting food temperature")
	}
	return nil
}

// Serve runs the HAP server for the accessory until ctx is done. Pairing
// data lives in a directory per grill so several grills can share a host.
func (gc *GrillController) Serve(ctx context.Context, cfg config.HomeKitConfig, smoker *gmg.Smoker, debug bool) error {
	slog.InfoContext(ctx, "Starting HomeKit server")

	if cfg.Name != "" {
		gc.accessory.Info.Name.SetValue(cfg.Name)
	}

	fs := hap.NewFsStore(filepath.Join(cfg.StorePath, smoker.UUID().String()))

	if debug {
		newLogger := syslog.New(os.Stdout, "SERV ", syslog.LstdFlags|syslog.Lshortfile)
		log.Debug = &log.Logger{Logger: newLogger}
	}

	server, err := hap.NewServer(fs, gc.accessory)
	if err != nil {
		return errors.Wrap(err, "creating server")
	}

	if cfg.Pin != "" {
		server.Pin = cfg.Pin
	}

	return server.ListenAndServe(ctx)
}
