package homekit

import (
	"context"
	"testing"

	"github.com/brutella/hap/characteristic"
	"github.com/stretchr/testify/assert"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmgtest"
)

type fakeController struct {
	calls []string
	grill []int
	food  []int
}

func (f *fakeController) TurnOn(context.Context) error {
	f.calls = append(f.calls, "on")
	return nil
}

func (f *fakeController) TurnOff(context.Context) error {
	f.calls = append(f.calls, "off")
	return nil
}

func (f *fakeController) SetGrillTemp(_ context.Context, fahrenheit int) error {
	f.grill = append(f.grill, fahrenheit)
	return nil
}

func (f *fakeController) SetFoodTemp(_ context.Context, fahrenheit int) error {
	f.food = append(f.food, fahrenheit)
	return nil
}

func decode(t *testing.T, s gmgtest.State) *gmg.Status {
	t.Helper()
	status, err := gmg.DecodeStatus(gmgtest.StatusPayload(s))
	if err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	return status
}

func newController(t *testing.T, s gmgtest.State) (*GrillController, *fakeController) {
	fc := &fakeController{}
	smoker := &gmg.Smoker{
		DeviceID:    "GMG1234",
		DeviceModel: gmg.ModelJimBowie,
		Firmware:    "v1.2.3",
		Status:      decode(t, s),
	}
	return NewGrillController(context.Background(), smoker, fc), fc
}

func TestAccessoryInfo(t *testing.T) {
	a := assert.New(t)
	gc, _ := newController(t, gmgtest.State{})

	info := gc.Accessory().Info
	a.Equal("Green Mountain Grills", info.Manufacturer.Value())
	a.Equal("GMG1234", info.SerialNumber.Value())
	a.Equal(gmg.ModelJimBowie, info.Model.Value())
	a.Equal("v1.2.3", info.FirmwareRevision.Value())
}

func TestApplyStatusOn(t *testing.T) {
	a := assert.New(t)
	gc, _ := newController(t, gmgtest.State{Power: 1, GrillTemp: 212, DesiredGrill: 230, FoodTemp: 104, DesiredFood: 140, LowPelletAlarm: true})

	a.True(gc.power.On.Value())
	a.False(gc.fanMode.On.Value())
	a.Equal(characteristic.SmokeDetectedSmokeDetected, gc.pellets.SmokeDetected.Value())

	a.Equal(characteristic.CurrentHeatingCoolingStateHeat, gc.grill.CurrentHeatingCoolingState.Value())
	a.Equal(characteristic.TargetHeatingCoolingStateHeat, gc.grill.TargetHeatingCoolingState.Value())
	a.InDelta(100.0, gc.grill.CurrentTemperature.Value(), 0.1)
	a.InDelta(110.0, gc.grill.TargetTemperature.Value(), 0.1)

	a.Equal(characteristic.CurrentHeatingCoolingStateHeat, gc.food.CurrentHeatingCoolingState.Value())
	a.InDelta(40.0, gc.food.CurrentTemperature.Value(), 0.1)
	a.InDelta(60.0, gc.food.TargetTemperature.Value(), 0.1)
}

func TestApplyStatusFanMode(t *testing.T) {
	a := assert.New(t)
	gc, _ := newController(t, gmgtest.State{Power: 1})

	gc.ObserveStatus(context.Background(), nil, decode(t, gmgtest.State{Power: 2, DesiredFood: 140}))

	a.False(gc.power.On.Value())
	a.True(gc.fanMode.On.Value())
	a.Equal(characteristic.SmokeDetectedSmokeNotDetected, gc.pellets.SmokeDetected.Value())
	a.Equal(characteristic.CurrentHeatingCoolingStateCool, gc.grill.CurrentHeatingCoolingState.Value())
	a.Equal(characteristic.TargetHeatingCoolingStateOff, gc.grill.TargetHeatingCoolingState.Value())

	// Desired food reads as the sentinel when the grill is not on.
	a.Equal(characteristic.CurrentHeatingCoolingStateOff, gc.food.CurrentHeatingCoolingState.Value())
	a.Equal(gmg.SentinelTemperature, gc.food.TargetTemperature.Value())
}

func TestSetPower(t *testing.T) {
	tests := []struct {
		name  string
		state gmgtest.State
		on    bool
		calls []string
	}{
		{name: "on from off", state: gmgtest.State{Power: 0}, on: true, calls: []string{"on"}},
		{name: "on when on", state: gmgtest.State{Power: 1}, on: true},
		{name: "on in fan mode", state: gmgtest.State{Power: 2}, on: true},
		{name: "off when on", state: gmgtest.State{Power: 1}, on: false, calls: []string{"off"}},
		{name: "off when off", state: gmgtest.State{Power: 0}, on: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			gc, fc := newController(t, test.state)
			assert.NoError(t, gc.setPower(context.Background(), test.on))
			assert.Equal(t, test.calls, fc.calls)
		})
	}
}

func TestSetTemperaturesConvertToFahrenheit(t *testing.T) {
	a := assert.New(t)
	gc, fc := newController(t, gmgtest.State{Power: 1})

	a.NoError(gc.setGrillTemp(context.Background(), 107.2))
	a.NoError(gc.setFoodTemp(context.Background(), 74))

	a.Equal([]int{225}, fc.grill)
	a.Equal([]int{165}, fc.food)
}
