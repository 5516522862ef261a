package types

import (
	"context"
	"time"
)

// FeatureVector is the fixed-length face descriptor produced by the oracle (128-d for the recognition net).
type FeatureVector []float32

// LabeledDescriptor is one enrolled identity with its reference samples.
type LabeledDescriptor struct {
	Label       string          `json:"label"`
	Descriptors []FeatureVector `json:"descriptors"`
}

// Box is a face bounding box in frame pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a single facial landmark.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection matches the JSON structure coming back from the Python oracle for one face.
type Detection struct {
	Box         Box           `json:"box"`
	Landmarks   []Point       `json:"landmarks"` // unused downstream
	Age         float64       `json:"age"`
	Gender      string        `json:"gender"`
	Expressions Expressions   `json:"expressions"`
	Descriptor  FeatureVector `json:"descriptor"`
}

// ErrorResult captures the error object returned by Python on failure
type ErrorResult struct {
	Error string `json:"error"`
}

// DetectionEvent is one attribute sample recorded per detected face per processed frame.
type DetectionEvent struct {
	Age       int       `json:"age"`
	Gender    Gender    `json:"gender"`
	Emotion   string    `json:"emotion"`
	Timestamp time.Time `json:"timestamp"`
}

// DetectionRecord is a DetectionEvent as echoed back by the collector once accepted.
type DetectionRecord struct {
	ID string `json:"id"`
	DetectionEvent
}

// Unknown is the label reported when no enrolled identity is close enough.
const Unknown = "unknown"

// MatchResult is the outcome of comparing one live descriptor against the enrollment store.
type MatchResult struct {
	Label    string
	Distance float64
}

// Known reports whether the match resolved to an enrolled label.
func (m MatchResult) Known() bool {
	return m.Label != Unknown
}

// OverlayCommand is what the loop asks the overlay to draw for a single face.
type OverlayCommand struct {
	Box      Box
	Age      int
	Gender   Gender
	Emotion  string
	Label    string
	Distance float64
}

// FeatureExtractor is the contract of the external face oracle.
//
// Load prepares the model artifacts and must succeed before any detection call.
// DetectAll returns every face in the frame (possibly none). DetectOne returns the
// single most confident face, or nil when the frame holds no face.
type FeatureExtractor interface {
	Load(ctx context.Context) error
	DetectAll(ctx context.Context, frame Frame) ([]Detection, error)
	DetectOne(ctx context.Context, frame Frame) (*Detection, error)
	Close() error
}
