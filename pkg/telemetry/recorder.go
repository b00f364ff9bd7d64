package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

// SessionRecord is one simulation run.
type SessionRecord struct {
	ID        uint           `gorm:"primaryKey"`
	SessionID string         `gorm:"size:36;uniqueIndex"`
	Name      string         `gorm:"size:128"`
	StartedAt time.Time      `gorm:"index"`
	TimeStep  float64        `gorm:"not null"`
	Tunables  datatypes.JSON `gorm:"type:json"`
}

func (SessionRecord) TableName() string { return "flight_sessions" }

// FrameRecord is one telemetry frame of a session.
type FrameRecord struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"size:36;index:idx_frame_session_tick,priority:1"`
	Tick       int64  `gorm:"index:idx_frame_session_tick,priority:2"`
	AircraftID string `gorm:"size:64"`
	Time       float64

	Throttle      float64
	Speed         float64
	Altitude      float64
	Bank          float64
	AngleOfAttack float64
	Airflow       bool
	Turning       bool
	Stabilizing   bool

	PosX, PosY, PosZ          float64
	VelX, VelY, VelZ          float64
	ForceX, ForceY, ForceZ    float64
	TorqueX, TorqueY, TorqueZ float64
}

func (FrameRecord) TableName() string { return "flight_frames" }

func newFrameRecord(sessionID string, f Frame) FrameRecord {
	return FrameRecord{
		SessionID:     sessionID,
		Tick:          int64(f.Tick),
		AircraftID:    f.AircraftID,
		Time:          f.Time,
		Throttle:      f.Throttle,
		Speed:         f.Speed,
		Altitude:      f.Altitude,
		Bank:          f.Bank,
		AngleOfAttack: f.AngleOfAttack,
		Airflow:       f.Airflow,
		Turning:       f.Turning,
		Stabilizing:   f.Stabilizing,
		PosX:          f.Position.X(),
		PosY:          f.Position.Y(),
		PosZ:          f.Position.Z(),
		VelX:          f.Velocity.X(),
		VelY:          f.Velocity.Y(),
		VelZ:          f.Velocity.Z(),
		ForceX:        f.Force.X(),
		ForceY:        f.Force.Y(),
		ForceZ:        f.Force.Z(),
		TorqueX:       f.Torque.X(),
		TorqueY:       f.Torque.Y(),
		TorqueZ:       f.Torque.Z(),
	}
}

// Session describes a run for the recorder.
type Session struct {
	ID        string
	Name      string
	StartedAt time.Time
	TimeStep  float64
	Tunables  flight.Tunables
}

// DefaultRecorderBatch is the number of frames buffered before a flush.
const DefaultRecorderBatch = 500

// Recorder stores frames in a SQLite database through gorm.
type Recorder struct {
	mu        sync.Mutex
	db        *gorm.DB
	sessionID string
	batch     []FrameRecord
	batchSize int
	closed    bool
}

// OpenRecorder opens (or creates) the database at path, migrates the schema
// and registers the session. Use ":memory:" for a throwaway database.
func OpenRecorder(ctx context.Context, path string, session Session) (*Recorder, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        DefaultRecorderBatch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		// in-memory databases are per connection
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(&SessionRecord{}, &FrameRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate recorder schema: %w", err)
	}

	tunables, err := json.Marshal(session.Tunables)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tunables: %w", err)
	}
	record := SessionRecord{
		SessionID: session.ID,
		Name:      session.Name,
		StartedAt: session.StartedAt,
		TimeStep:  session.TimeStep,
		Tunables:  datatypes.JSON(tunables),
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Recorder{
		db:        db,
		sessionID: session.ID,
		batchSize: DefaultRecorderBatch,
	}, nil
}

// Write buffers a frame, flushing when the batch is full.
func (r *Recorder) Write(ctx context.Context, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSinkClosed
	}
	r.batch = append(r.batch, newFrameRecord(r.sessionID, f))
	if len(r.batch) >= r.batchSize {
		return r.flushLocked(ctx)
	}
	return nil
}

// Flush writes any buffered frames.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSinkClosed
	}
	return r.flushLocked(ctx)
}

func (r *Recorder) flushLocked(ctx context.Context) error {
	if len(r.batch) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(r.batch, r.batchSize).Error; err != nil {
		return fmt.Errorf("failed to store %d frames: %w", len(r.batch), err)
	}
	r.batch = r.batch[:0]
	return nil
}

// Frames returns a session's frames ordered by tick and aircraft.
func (r *Recorder) Frames(ctx context.Context, sessionID string) ([]FrameRecord, error) {
	var frames []FrameRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("tick asc, aircraft_id asc").
		Find(&frames).Error
	return frames, err
}

// Sessions returns every recorded session, oldest first.
func (r *Recorder) Sessions(ctx context.Context) ([]SessionRecord, error) {
	var sessions []SessionRecord
	err := r.db.WithContext(ctx).Order("started_at asc, id asc").Find(&sessions).Error
	return sessions, err
}

// SessionID is the session frames are written under.
func (r *Recorder) SessionID() string { return r.sessionID }

// Close flushes pending frames and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	flushErr := r.flushLocked(context.Background())
	r.closed = true

	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return flushErr
}
