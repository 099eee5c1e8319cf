package detection

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"object-detection-sensor/config"
)

// ObjectName is the fixed key every snapshot is uploaded under.
const ObjectName = "snapshot.png"

// DefaultName is the sensor name when none is configured.
const DefaultName = "Object Detection"

// Sensor states
const (
	StateOn  = "on"
	StateOff = "off"
)

// Status texts reported through the Status attribute
const (
	StatusNone             = "None"
	StatusInputNotFound    = "Input file not found"
	StatusTooRecent        = "Last check too recent"
	StatusUploadFailed     = "File upload failed"
	StatusLabelsDetected   = "Labels detected"
	StatusNoRelevantLabels = "No relevant labels detected"
)

// Attribute keys exposed to Home Assistant
const (
	AttrStatus         = "Status"
	AttrDetections     = "Detections"
	AttrNumberOfChecks = "Number Of Checks"
	AttrLastChecked    = "Last Checked"
	AttrCountLastReset = "Count Last Reset"
	AttrCountNextReset = "Count Next Reset"
)

var (
	ErrInputMissing = errors.New("input file not found")
	ErrUpload       = errors.New("file upload failed")
	ErrLabelService = errors.New("label detection failed")
	ErrAnnotation   = errors.New("annotation failed")
)

// Variant selects what happens to the snapshot after a successful upload.
type Variant int

const (
	// VariantRemove deletes the local snapshot after upload.
	VariantRemove Variant = 1
	// VariantAnnotate renames the snapshot to <stem>-processing.png and
	// writes an annotated copy to <stem>-boxes.png.
	VariantAnnotate Variant = 2
)

// BoundingBox is a rectangle given as fractions of the image dimensions.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Instance is one located occurrence of a label.
type Instance struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// Label is a single result from the label detection service.
type Label struct {
	Name       string     `json:"name"`
	Confidence float64    `json:"confidence"`
	Instances  []Instance `json:"instances"`
}

// BoxStyle holds the drawing parameters for annotated images.
type BoxStyle struct {
	Width       int
	Color       string
	FontSize    int
	StrokeWidth int
	StrokeColor string
}

// Config is the immutable configuration of one sensor.
type Config struct {
	Name                    string
	Bucket                  string
	InputFile               string
	ImageMaxAge             int
	LabelsToFind            []string
	MinConfidence           float64
	MaxLabels               int
	MaxAllowedChecks        int
	MinSecondsBetweenChecks int
	ResetInterval           time.Duration
	Variant                 Variant
	// AdvanceLastCheck moves the last check timestamp after every completed
	// label call. When false the timestamp keeps its construction value.
	AdvanceLastCheck bool
	Box              BoxStyle
}

// NewConfig builds a sensor configuration from the loaded settings.
func NewConfig(sc config.SensorConfig) Config {
	name := sc.Name
	if name == "" {
		name = DefaultName
	}
	maxLabels := sc.MaxLabels
	if maxLabels <= 0 {
		maxLabels = 20
	}
	return Config{
		Name:                    name,
		Bucket:                  sc.Bucket,
		InputFile:               sc.InputFile,
		ImageMaxAge:             sc.ImageMaxAge,
		LabelsToFind:            append([]string(nil), sc.LabelsToFind...),
		MinConfidence:           sc.MinConfidence,
		MaxLabels:               maxLabels,
		MaxAllowedChecks:        sc.MaxAllowedChecks,
		MinSecondsBetweenChecks: sc.MinSecondsBetweenChecks,
		ResetInterval:           time.Duration(sc.HoursBetweenCheckCountReset) * time.Hour,
		Variant:                 Variant(sc.Variant),
		AdvanceLastCheck:        sc.AdvanceLastCheck,
		Box: BoxStyle{
			Width:       sc.DetectionBoxWidth,
			Color:       sc.DetectionBoxColor,
			FontSize:    sc.DetectionBoxFontSize,
			StrokeWidth: sc.DetectionBoxStrokeWidth,
			StrokeColor: sc.DetectionBoxStrokeColor,
		},
	}
}

// MinInterval returns the minimum spacing between two checks.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.MinSecondsBetweenChecks) * time.Second
}

// State is the mutable record owned by a Sensor.
type State struct {
	State          string         `json:"state"`
	Status         string         `json:"status"`
	Detections     map[string]int `json:"detections"`
	NumberOfChecks int            `json:"number_of_checks"`
	LastCheck      time.Time      `json:"last_check"`
	LastCountReset time.Time      `json:"last_count_reset"`
	NextCountReset time.Time      `json:"next_count_reset"`
}

// newState returns the initial state for a sensor constructed at now.
func newState(now time.Time, resetInterval time.Duration) State {
	return State{
		State:          StateOff,
		Status:         StatusNone,
		Detections:     map[string]int{},
		LastCheck:      now,
		LastCountReset: now,
		NextCountReset: now.Add(resetInterval),
	}
}

// settle sets the (status, state, detections) triple a tick ends with.
func (s *State) settle(status, state string, detections map[string]int) {
	if detections == nil {
		detections = map[string]int{}
	}
	s.Status = status
	s.State = state
	s.Detections = detections
}

func (s State) clone() State {
	c := s
	c.Detections = make(map[string]int, len(s.Detections))
	for k, v := range s.Detections {
		c.Detections[k] = v
	}
	return c
}

// ObjectStore uploads snapshots to remote storage.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, objectName string, r io.Reader, size int64) error
}

// LabelDetector runs label detection against an uploaded object.
type LabelDetector interface {
	DetectLabels(ctx context.Context, bucket, objectName string, maxLabels int, minConfidence float64) ([]Label, error)
}

// Annotator draws the matched labels onto a copy of an image.
type Annotator interface {
	Annotate(srcPath, dstPath string, labels []Label, targets []string) error
}

func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// ProcessingPath is where the snapshot is moved after upload in VariantAnnotate.
func ProcessingPath(inputFile string) string {
	return stem(inputFile) + "-processing.png"
}

// BoxesPath is where the annotated image is written.
func BoxesPath(inputFile string) string {
	return stem(inputFile) + "-boxes.png"
}
