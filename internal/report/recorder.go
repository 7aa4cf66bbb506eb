package report

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"tailwind/internal/model"
)

var rideBucket = []byte("ride_log")

// Recorder appends periodic snapshots to a bbolt bucket keyed by timestamp,
// forming the ride log. Like every reporter it reads the snapshot at its own
// cadence and skips cleanly when the read times out.
type Recorder struct {
	cfg  model.ReportConfig
	port ControlPort
	db   *bbolt.DB

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewRecorder opens (or creates) the ride log database.
func NewRecorder(cfg model.ReportConfig, port ControlPort) (*Recorder, error) {
	db, err := bbolt.Open(cfg.RideLogPath, 0o666, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ride log: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rideBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ride bucket: %w", err)
	}
	return &Recorder{cfg: cfg, port: port, db: db, stop: make(chan struct{})}, nil
}

// Start begins the periodic recording loop.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.loop()
	log.Info().Str("path", r.cfg.RideLogPath).Msg("ride recorder started")
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Duration(r.cfg.RideLogEvery) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			snap, ok := r.port.Snapshot()
			if !ok {
				continue
			}
			if err := r.record(snap); err != nil {
				log.Warn().Err(err).Msg("ride record failed")
			}
		}
	}
}

// record stores one snapshot keyed by its RFC3339Nano timestamp.
func (r *Recorder) record(snap model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := []byte(snap.Timestamp.UTC().Format(time.RFC3339Nano))
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(rideBucket).Put(key, payload)
	})
}

// Entries returns the number of recorded snapshots.
func (r *Recorder) Entries() (int, error) {
	n := 0
	err := r.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(rideBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Stop ends the loop and closes the database.
func (r *Recorder) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.wg.Wait()
	if err := r.db.Close(); err != nil {
		log.Warn().Err(err).Msg("close ride log")
	}
}
