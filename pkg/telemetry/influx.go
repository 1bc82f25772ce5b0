package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

const (
	measurement = "grill_status"

	defaultConnectTimeout = 10 * time.Second

	millisecondsPerSecond = 1000
)

// ErrInfluxConnection is returned when the InfluxDB server cannot be reached.
var ErrInfluxConnection = errors.New("telemetry: influxdb connection failed")

// InfluxSink writes one point per observed status. Writes are batched and
// non-blocking.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// ConnectInflux creates the client and verifies the server with a ping.
func ConnectInflux(ctx context.Context, cfg config.InfluxDBConfig) (*InfluxSink, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrInfluxConnection, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrInfluxConnection)
	}

	s := &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}

	go func() {
		for err := range s.writeAPI.Errors() {
			slog.Error("InfluxDB write failed", "error", err)
		}
	}()

	return s, nil
}

// ObserveStatus queues a point for the status.
func (s *InfluxSink) ObserveStatus(_ context.Context, smoker *gmg.Smoker, status *gmg.Status) {
	s.writeAPI.WritePoint(StatusPoint(smoker, status, time.Now()))
}

// Close flushes pending points and closes the client.
func (s *InfluxSink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}

// StatusPoint builds the grill_status point for a status.
func StatusPoint(smoker *gmg.Smoker, status *gmg.Status, ts time.Time) *write.Point {
	return write.NewPoint(
		measurement,
		map[string]string{
			"device_id": smoker.DeviceID,
			"model":     smoker.DeviceModel,
		},
		map[string]interface{}{
			"state":              status.State.String(),
			"is_on":              status.IsOn,
			"fan_mode":           status.FanModeActive,
			"grill_temp":         status.CurrentGrillTemp,
			"desired_grill_temp": status.DesiredGrillTemp,
			"food_temp":          status.CurrentFoodTemp,
			"desired_food_temp":  status.DesiredFoodTemp,
			"low_pellets":        status.LowPelletAlarmActive,
		},
		ts,
	)
}
