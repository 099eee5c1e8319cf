package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"object-detection-sensor/internal/clock"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Result describes what one tick did, for callers that record or publish it.
type Result struct {
	Verdict Verdict
	// Uploaded is true when the transfer stage succeeded.
	Uploaded bool
	Labels   []Label
	// AnnotatedPath is set when an annotated image was written.
	AnnotatedPath string
	StartedAt     time.Time
	Duration      time.Duration
	State         State
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithFs sets the filesystem the input file is read from.
func WithFs(fs afero.Fs) Option {
	return func(s *Sensor) { s.fs = fs }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Sensor) { s.clock = c }
}

// WithAnnotator enables the annotation stage in VariantAnnotate.
func WithAnnotator(a Annotator) Option {
	return func(s *Sensor) { s.annotator = a }
}

// Sensor combines the pipeline stages into a polled on/off sensor.
type Sensor struct {
	cfg       Config
	fs        afero.Fs
	clock     clock.Clock
	store     ObjectStore
	detector  LabelDetector
	annotator Annotator

	gate     *Gate
	transfer *Transfer

	tickMu sync.Mutex // one tick at a time

	mu    sync.RWMutex
	state State
}

// NewSensor creates a sensor. Its timestamps start at the clock's current time.
func NewSensor(cfg Config, store ObjectStore, detector LabelDetector, opts ...Option) *Sensor {
	s := &Sensor{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		clock:    clock.Real{},
		store:    store,
		detector: detector,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.gate = NewGate(s.fs, cfg)
	s.transfer = NewTransfer(s.fs, store, cfg.Bucket, cfg.Variant)
	s.state = newState(s.clock.Now(), cfg.ResetInterval)
	return s
}

// Name returns the sensor's display name.
func (s *Sensor) Name() string {
	return s.cfg.Name
}

// Config returns the sensor configuration.
func (s *Sensor) Config() Config {
	return s.cfg
}

// State returns "on" or "off".
func (s *Sensor) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.State
}

// Snapshot returns a copy of the current state.
func (s *Sensor) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Attributes returns the extra state attributes keyed as Home Assistant shows them.
func (s *Sensor) Attributes() map[string]any {
	st := s.Snapshot()
	return map[string]any{
		AttrStatus:         st.Status,
		AttrDetections:     st.Detections,
		AttrNumberOfChecks: st.NumberOfChecks,
		AttrLastChecked:    st.LastCheck,
		AttrCountLastReset: st.LastCountReset,
		AttrCountNextReset: st.NextCountReset,
	}
}

// Update runs one poll tick. A label service failure is returned wrapped in
// ErrLabelService and leaves the status, state and detections untouched.
func (s *Sensor) Update(ctx context.Context) (res Result, err error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.clock.Now()
	res.StartedAt = now

	st := s.Snapshot()
	defer func() {
		s.commit(st)
		res.State = st.clone()
		res.Duration = s.clock.Now().Sub(now)
	}()

	res.Verdict = s.gate.Evaluate(&st, now)
	if res.Verdict != Proceed {
		log.Debugf("Sensor %s skipped tick: %s", s.cfg.Name, st.Status)
		return res, nil
	}

	processed, terr := s.transfer.Run(ctx, s.cfg.InputFile)
	if terr != nil {
		st.settle(StatusUploadFailed, StateOff, nil)
		return res, nil
	}
	res.Uploaded = true

	labels, lerr := s.detector.DetectLabels(ctx, s.cfg.Bucket, ObjectName, s.cfg.MaxLabels, s.cfg.MinConfidence)
	if lerr != nil {
		return res, fmt.Errorf("%w: %w", ErrLabelService, lerr)
	}
	st.NumberOfChecks++
	if s.cfg.AdvanceLastCheck {
		st.LastCheck = now
	}
	res.Labels = labels

	detections, found := Aggregate(labels, s.cfg.LabelsToFind)
	log.WithFields(log.Fields{
		"labels_to_find": s.cfg.LabelsToFind,
		"detections":     detections,
		"found":          found,
	}).Info("Label detection completed")

	if processed != "" && s.annotator != nil {
		out := BoxesPath(s.cfg.InputFile)
		if aerr := s.annotator.Annotate(processed, out, labels, s.cfg.LabelsToFind); aerr != nil {
			log.WithError(fmt.Errorf("%w: %w", ErrAnnotation, aerr)).Warn("Skipping annotated image")
		} else {
			res.AnnotatedPath = out
		}
	}

	if found {
		st.settle(StatusLabelsDetected, StateOn, detections)
	} else {
		st.settle(StatusNoRelevantLabels, StateOff, detections)
	}
	return res, nil
}

func (s *Sensor) commit(st State) {
	s.mu.Lock()
	s.state = st.clone()
	s.mu.Unlock()
}
