package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/elevfleet/core/logger"
	coremetrics "github.com/kilianp07/elevfleet/core/metrics"
	inflog "github.com/kilianp07/elevfleet/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxSink writes fleet events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      inflog.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes an assignment attempt.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	p := write.NewPointWithMeasurement("assignment").
		AddTag("elevator_id", strconv.FormatInt(ev.ElevatorID, 10)).
		AddTag("manual", strconv.FormatBool(ev.Manual)).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("request_id", ev.RequestID).
		AddField("source_floor", ev.SourceFloor).
		AddField("target_floor", ev.TargetFloor).
		AddField("cost", ev.Cost).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordReposition writes an empty move.
func (s *InfluxSink) RecordReposition(ev coremetrics.RepositionEvent) error {
	p := write.NewPointWithMeasurement("reposition").
		AddTag("elevator_id", strconv.FormatInt(ev.ElevatorID, 10)).
		AddTag("reason", ev.Reason).
		AddField("from_floor", ev.FromFloor).
		AddField("to_floor", ev.ToFloor).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordHealth writes a service state change.
func (s *InfluxSink) RecordHealth(ev coremetrics.HealthEvent) error {
	p := write.NewPointWithMeasurement("health_transition").
		AddTag("elevator_id", strconv.FormatInt(ev.ElevatorID, 10)).
		AddTag("transition", string(ev.Transition)).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordEco writes an eco mode change.
func (s *InfluxSink) RecordEco(ev coremetrics.EcoEvent) error {
	p := write.NewPointWithMeasurement("eco_mode").
		AddTag("elevator_id", strconv.FormatInt(ev.ElevatorID, 10)).
		AddField("parked", ev.Parked).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordFleetSnapshot writes the fleet summary.
func (s *InfluxSink) RecordFleetSnapshot(snap coremetrics.FleetSnapshot) error {
	p := write.NewPointWithMeasurement("fleet_snapshot").
		AddField("total", snap.Total).
		AddField("operational", snap.Operational).
		AddField("idle", snap.Idle).
		AddField("parked", snap.Parked).
		AddField("pending", snap.Pending).
		SetTime(snap.Time)
	return s.write(p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }
