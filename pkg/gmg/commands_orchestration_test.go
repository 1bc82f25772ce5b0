package gmg_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmgtest"
)

func TestTurnOn(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t)
	c := newClient(g, 3, time.Second)

	require.NoError(t, c.TurnOn(context.Background()))

	a.Equal(1, g.State().Power)
	a.Equal([]string{"UR001", "UK001", "UR001"}, g.Received())
}

func TestTurnOnAlreadyOn(t *testing.T) {
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 1}))
	c := newClient(g, 3, time.Second)

	require.NoError(t, c.TurnOn(context.Background()))
	assert.Equal(t, []string{"UR001"}, g.Received())
}

func TestTurnOnRejectedInFanMode(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 2}))
	c := newClient(g, 3, time.Second)

	err := c.TurnOn(context.Background())
	a.True(errors.Is(err, gmg.ErrInvalidState), "got %v", err)
	a.Equal([]string{"UR001"}, g.Received(), "no power command is sent")
}

func TestTurnOff(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 1}))
	c := newClient(g, 3, time.Second)

	require.NoError(t, c.TurnOff(context.Background()))

	a.Equal(0, g.State().Power)
	a.Equal([]string{"UR001", "UK004", "UR001"}, g.Received())
}

func TestTurnOffAlreadyOff(t *testing.T) {
	g := gmgtest.New(t)
	c := newClient(g, 3, time.Second)

	require.NoError(t, c.TurnOff(context.Background()))
	assert.Equal(t, []string{"UR001"}, g.Received())
}

func TestTogglePower(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t)
	c := newClient(g, 3, time.Second)

	require.NoError(t, c.TogglePower(context.Background()))
	a.Equal(1, g.State().Power)

	require.NoError(t, c.TogglePower(context.Background()))
	a.Equal(0, g.State().Power)
}

func TestSetGrillTemp(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 1, DesiredGrill: 180}))
	c := newClient(g, 3, time.Second)

	require.NoError(t, c.SetGrillTemp(context.Background(), 225))

	a.Equal(225, g.State().DesiredGrill)
	a.Equal([]string{"UR001", "UT225", "UR001"}, g.Received())
}

func TestSetFoodTemp(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 1}))
	c := newClient(g, 3, time.Second)

	require.NoError(t, c.SetFoodTemp(context.Background(), 165))

	a.Equal(165, g.State().DesiredFood)
	a.Equal([]string{"UR001", "UF165", "UR001"}, g.Received())
}

func TestSetTempRejectedWhileOff(t *testing.T) {
	for _, power := range []int{0, 2, 7} {
		g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: power}))
		c := newClient(g, 3, time.Second)

		err := c.SetGrillTemp(context.Background(), 225)
		assert.True(t, errors.Is(err, gmg.ErrInvalidState), "power %d: got %v", power, err)

		err = c.SetFoodTemp(context.Background(), 165)
		assert.True(t, errors.Is(err, gmg.ErrInvalidState), "power %d: got %v", power, err)

		assert.Equal(t, []string{"UR001", "UR001"}, g.Received(), "power %d: only status requests", power)
	}
}

func TestCommandRequiresOKAcknowledgement(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 1}), gmgtest.WithAck("ERR"))
	c := newClient(g, 3, time.Second)

	err := c.SetGrillTemp(context.Background(), 225)
	a.True(errors.Is(err, gmg.ErrProtocol), "got %v", err)
	a.Equal([]string{"UR001", "UT225"}, g.Received(), "verification is skipped")
}

func TestCommandVerifiesPostcondition(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 1, DesiredGrill: 180}), gmgtest.Stuck())
	c := newClient(g, 3, time.Second)

	err := c.SetGrillTemp(context.Background(), 225)
	a.True(errors.Is(err, gmg.ErrProtocol), "got %v", err)
	a.Equal([]string{"UR001", "UT225", "UR001"}, g.Received())

	err = c.TurnOff(context.Background())
	a.True(errors.Is(err, gmg.ErrProtocol), "got %v", err)
}

func TestStatusUnresponsive(t *testing.T) {
	g := gmgtest.New(t, gmgtest.Silent())
	c := newClient(g, 2, 10*time.Millisecond)

	err := c.TurnOn(context.Background())
	assert.True(t, errors.Is(err, gmg.ErrDeviceUnresponsive), "got %v", err)
}
