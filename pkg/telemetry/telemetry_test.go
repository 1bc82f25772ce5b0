package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmgtest"
)

func decode(t *testing.T, s gmgtest.State) *gmg.Status {
	t.Helper()
	status, err := gmg.DecodeStatus(gmgtest.StatusPayload(s))
	require.NoError(t, err)
	return status
}

func TestMetricsObserveStatus(t *testing.T) {
	a := assert.New(t)
	m := NewMetrics()
	smoker := &gmg.Smoker{DeviceID: "GMG1234"}

	m.ObserveStatus(context.Background(), smoker, decode(t, gmgtest.State{Power: 1, GrillTemp: 212, DesiredGrill: 230, LowPelletAlarm: true}))

	a.Equal(100.0, testutil.ToFloat64(m.grillTemp.WithLabelValues("GMG1234")))
	a.InDelta(110.0, testutil.ToFloat64(m.desiredGrillTemp.WithLabelValues("GMG1234")), 0.01)
	a.Equal(1.0, testutil.ToFloat64(m.powerState.WithLabelValues("GMG1234")))
	a.Equal(0.0, testutil.ToFloat64(m.fanMode.WithLabelValues("GMG1234")))
	a.Equal(1.0, testutil.ToFloat64(m.lowPellets.WithLabelValues("GMG1234")))

	m.ObserveStatus(context.Background(), smoker, decode(t, gmgtest.State{Power: 2}))
	a.Equal(2.0, testutil.ToFloat64(m.powerState.WithLabelValues("GMG1234")))
	a.Equal(1.0, testutil.ToFloat64(m.fanMode.WithLabelValues("GMG1234")))
	a.Equal(gmg.SentinelTemperature, testutil.ToFloat64(m.desiredGrillTemp.WithLabelValues("GMG1234")))
}

func TestMetricsPollFailures(t *testing.T) {
	m := NewMetrics()
	smoker := &gmg.Smoker{DeviceID: "GMG1234"}

	m.ObservePollError(context.Background(), smoker, gmg.ErrDeviceUnresponsive)
	m.ObservePollError(context.Background(), smoker, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pollFailures.WithLabelValues("GMG1234")))
}

func TestMetricsHandler(t *testing.T) {
	a := assert.New(t)
	m := NewMetrics()
	m.ObserveStatus(context.Background(), &gmg.Smoker{DeviceID: "GMG1234"}, decode(t, gmgtest.State{Power: 1, GrillTemp: 212}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	a.Contains(string(body), `gmg_grill_temp_celsius{device_id="GMG1234"} 100`)
	a.Contains(string(body), `gmg_power_state{device_id="GMG1234"} 1`)
}

func TestStatusPoint(t *testing.T) {
	a := assert.New(t)

	smoker := &gmg.Smoker{DeviceID: "GMG1234", DeviceModel: gmg.ModelJimBowie}
	ts := time.Unix(1714564800, 0)
	p := StatusPoint(smoker, decode(t, gmgtest.State{Power: 1, GrillTemp: 212}), ts)

	a.Equal("grill_status", p.Name())
	a.Equal(ts, p.Time())

	line := write.PointToLineProtocol(p, time.Second)
	a.Contains(line, `grill_status,device_id=GMG1234,model=Jim\ Bowie `)
	a.Contains(line, "grill_temp=100")
	a.Contains(line, "is_on=true")
	a.Contains(line, `state="on"`)
	a.Contains(line, " 1714564800")
}
