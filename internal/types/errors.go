package types

import "errors"

var (
	// ErrCameraAccessDenied is returned when the capture device refuses to open.
	ErrCameraAccessDenied = errors.New("camera access denied")
	// ErrCameraUnavailable is returned when the device is missing or never produced a frame.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrModelLoadFailed is returned when the oracle could not load its model artifacts.
	ErrModelLoadFailed = errors.New("model load failed")
	// ErrNoFaceDetected is returned by enrollment when the still frame holds no face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrExportFailed is returned by exporters when the collector rejects a batch.
	ErrExportFailed = errors.New("export failed")
	// ErrInvalidStateTransition is returned by start/stop outside their valid source state.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
