// Package telemetry exports grill readings to Prometheus and InfluxDB.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

// Metrics holds the grill gauges on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	grillTemp        *prometheus.GaugeVec
	desiredGrillTemp *prometheus.GaugeVec
	foodTemp         *prometheus.GaugeVec
	desiredFoodTemp  *prometheus.GaugeVec
	powerState       *prometheus.GaugeVec
	fanMode          *prometheus.GaugeVec
	lowPellets       *prometheus.GaugeVec
	pollFailures     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gmg",
			Name:      name,
			Help:      help,
		}, []string{"device_id"})
	}

	m := &Metrics{
		registry:         prometheus.NewRegistry(),
		grillTemp:        gauge("grill_temp_celsius", "Current grill temperature (°C)"),
		desiredGrillTemp: gauge("grill_target_temp_celsius", "Target grill temperature (°C)"),
		foodTemp:         gauge("food_temp_celsius", "Current food probe temperature (°C)"),
		desiredFoodTemp:  gauge("food_target_temp_celsius", "Target food probe temperature (°C)"),
		powerState:       gauge("power_state", "Power state: 0 off, 1 on, 2 fan mode, 3 unknown"),
		fanMode:          gauge("fan_mode", "1 while fan mode is active"),
		lowPellets:       gauge("low_pellets", "1 while the low pellet alarm is active"),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gmg",
			Name:      "poll_failures_total",
			Help:      "Status polls that failed",
		}, []string{"device_id"}),
	}

	m.registry.MustRegister(
		m.grillTemp,
		m.desiredGrillTemp,
		m.foodTemp,
		m.desiredFoodTemp,
		m.powerState,
		m.fanMode,
		m.lowPellets,
		m.pollFailures,
	)

	return m
}

// ObserveStatus updates the gauges for smoker.
func (m *Metrics) ObserveStatus(_ context.Context, smoker *gmg.Smoker, status *gmg.Status) {
	id := smoker.DeviceID

	m.grillTemp.WithLabelValues(id).Set(status.CurrentGrillTemp)
	m.desiredGrillTemp.WithLabelValues(id).Set(status.DesiredGrillTemp)
	m.foodTemp.WithLabelValues(id).Set(status.CurrentFoodTemp)
	m.desiredFoodTemp.WithLabelValues(id).Set(status.DesiredFoodTemp)
	m.powerState.WithLabelValues(id).Set(float64(status.State))
	m.fanMode.WithLabelValues(id).Set(boolToFloat(status.FanModeActive))
	m.lowPellets.WithLabelValues(id).Set(boolToFloat(status.LowPelletAlarmActive))
}

// ObservePollError counts a failed poll.
func (m *Metrics) ObservePollError(_ context.Context, smoker *gmg.Smoker, _ error) {
	m.pollFailures.WithLabelValues(smoker.DeviceID).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
