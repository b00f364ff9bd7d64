package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

// FrameMeasurement is the InfluxDB measurement frames are written to.
const FrameMeasurement = "flight_frame"

// InfluxOptions selects the server and the local fallback file.
type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// BackupPath receives gzipped line protocol when the server is unreachable.
	BackupPath string
	// Epoch is the wall time of simulation time zero.
	Epoch time.Time
}

// InfluxSink writes frames as InfluxDB points. When the server does not
// answer a ping at startup it appends line protocol to a gzip backup file
// instead, if one is configured.
type InfluxSink struct {
	mu        sync.Mutex
	client    influxdb2.Client
	writer    influxdb2_api.WriteAPIBlocking
	backup    *gzip.Writer
	file      *os.File
	sessionID string
	epoch     time.Time
	closed    bool
	logger    *logging.Logger
}

// NewInfluxSink connects to InfluxDB.
func NewInfluxSink(ctx context.Context, opts InfluxOptions, sessionID string, logger *logging.Logger) (*InfluxSink, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	epoch := opts.Epoch
	if epoch.IsZero() {
		epoch = time.Now()
	}

	s := &InfluxSink{
		client:    influxdb2.NewClientWithOptions(opts.URL, opts.Token, influxdb2.DefaultOptions()),
		sessionID: sessionID,
		epoch:     epoch,
		logger:    logger,
	}

	running, err := s.client.Ping(ctx)
	if err == nil && running {
		s.writer = s.client.WriteAPIBlocking(opts.Org, opts.Bucket)
		logger.Info(ctx, "influxdb sink connected", "url", opts.URL, "bucket", opts.Bucket)
		return s, nil
	}

	if opts.BackupPath == "" {
		s.client.Close()
		if err == nil {
			err = errors.New("server not ready")
		}
		return nil, fmt.Errorf("influxdb unreachable at %s: %w", opts.URL, err)
	}

	file, ferr := os.OpenFile(opts.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if ferr != nil {
		s.client.Close()
		return nil, fmt.Errorf("error creating backup file: %w", ferr)
	}
	s.file = file
	s.backup = gzip.NewWriter(file)
	logger.Warn(ctx, "influxdb unreachable, writing to backup file", "url", opts.URL, "backupPath", opts.BackupPath)
	return s, nil
}

// Connected reports whether frames go to the server rather than the backup.
func (s *InfluxSink) Connected() bool { return s.writer != nil }

// FramePoint converts a frame to a point timestamped at epoch plus
// simulation time, so replays of a run produce identical series.
func FramePoint(sessionID string, epoch time.Time, f Frame) *influxdb2_write.Point {
	ts := epoch.Add(time.Duration(f.Time * float64(time.Second)))
	return influxdb2_write.NewPoint(
		FrameMeasurement,
		map[string]string{
			"session":  sessionID,
			"aircraft": f.AircraftID,
		},
		map[string]interface{}{
			"tick":        int64(f.Tick),
			"throttle":    f.Throttle,
			"speed":       f.Speed,
			"altitude":    f.Altitude,
			"bank":        f.Bank,
			"aoa":         f.AngleOfAttack,
			"airflow":     f.Airflow,
			"turning":     f.Turning,
			"stabilizing": f.Stabilizing,
			"force":       f.Force.Len(),
			"torque":      f.Torque.Len(),
		},
		ts,
	)
}

func (s *InfluxSink) Write(ctx context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	point := FramePoint(s.sessionID, s.epoch, f)
	if s.writer != nil {
		return s.writer.WritePoint(ctx, point)
	}

	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := s.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes the backup file, if any, and releases the client.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Close()

	if s.backup == nil {
		return nil
	}
	return errors.Join(s.backup.Close(), s.file.Close())
}
