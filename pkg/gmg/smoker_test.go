package gmg_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmgtest"
)

func TestParseModel(t *testing.T) {
	a := assert.New(t)

	tests := []struct {
		raw      string
		model    string
		firmware string
	}{
		{raw: "UNJB0000000v1.2.3", model: gmg.ModelJimBowie, firmware: "v1.2.3"},
		{raw: "UNDB0000000v2.0", model: gmg.ModelDanielBoone, firmware: "v2.0"},
		{raw: "UNDB", model: gmg.ModelDanielBoone, firmware: ""},
		{raw: "UNPT0000000v9", model: gmg.ModelUnknown, firmware: "UNPT0000000v9"},
		{raw: "UN", model: gmg.ModelUnknown, firmware: "UN"},
	}

	for _, test := range tests {
		model, firmware := gmg.ParseModel(test.raw)
		a.Equal(test.model, model, test.raw)
		a.Equal(test.firmware, firmware, test.raw)
	}
}

func TestFetchSmoker(t *testing.T) {
	a := assert.New(t)
	g := gmgtest.New(t,
		gmgtest.WithID("GMG1234"),
		gmgtest.WithModel("UNJB0000000v3.1"),
		gmgtest.WithState(gmgtest.State{Power: 1, GrillTemp: 225, DesiredGrill: 225}),
	)

	c := gmg.NewClient(gmg.Config{
		BroadcastAddress: "127.0.0.1",
		Port:             g.Port(),
		RetryInterval:    time.Second,
	}, gmg.WithLogger(discard))

	smoker, err := gmg.FetchSmoker(context.Background(), c)
	require.NoError(t, err)

	a.Equal("GMG1234", smoker.DeviceID)
	a.Equal(gmg.ModelJimBowie, smoker.DeviceModel)
	a.Equal("v3.1", smoker.Firmware)
	a.Equal("127.0.0.1", smoker.IPAddress)
	a.True(smoker.Status.IsOn)
	a.InDelta(107.2, smoker.Status.DesiredGrillTemp, 0.05)
}

func TestSmokerUUIDIsStable(t *testing.T) {
	a := assert.New(t)

	s := &gmg.Smoker{DeviceID: "GMG1234"}
	a.Equal(s.UUID(), (&gmg.Smoker{DeviceID: "GMG1234"}).UUID())
	a.NotEqual(s.UUID(), (&gmg.Smoker{DeviceID: "GMG9999"}).UUID())
	a.Equal(uuid.Version(5), s.UUID().Version())
}
