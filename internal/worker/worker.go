package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils" // Using the SafeCommand wrapper
)

// Operation codes understood by the Python oracle.
const (
	opLoad      byte = 'L'
	opDetectAll byte = 'A'
	opDetectOne byte = 'S'
)

// Response status bytes.
const (
	statusOK    byte = 0
	statusError byte = 1
)

// maxResponse guards against a corrupt length header allocating gigabytes.
const maxResponse = 64 * 1024 * 1024

// DefaultNets are the model artifacts a session needs: detection, landmarks,
// recognition descriptors, age/gender and expressions.
var DefaultNets = []string{
	"tiny_face_detector",
	"face_landmark_68",
	"face_recognition",
	"age_gender",
	"face_expression",
}

// Config describes how to launch and prime the oracle process.
type Config struct {
	Python         string   // interpreter, e.g. python3
	Script         string   // oracle entry point
	ModelDir       string   // directory holding the model artifacts
	Nets           []string // nets to load, DefaultNets when empty
	InputSize      int      // detector input size (tiny face detector: multiple of 32)
	ScoreThreshold float64  // minimum detection confidence
}

// loadRequest is the JSON payload of the load operation.
type loadRequest struct {
	ModelDir       string   `json:"model_dir"`
	Nets           []string `json:"nets"`
	InputSize      int      `json:"input_size"`
	ScoreThreshold float64  `json:"score_threshold"`
}

// PythonWorker talks to the oracle subprocess over a length-prefixed pipe protocol.
//
// Request:  [uint32 length][op][payload]
// Response: [uint32 length][status][body]  body is JSON on success, a message on error.
//
// Calls are serialised; there is never more than one request on the pipe.
type PythonWorker struct {
	ID int

	// Cmd is the most recently spawned process. It is kept after the process
	// exits so its stderr can still be shown.
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
	loaded bool
}

// NewPythonWorker prepares a worker. The subprocess is spawned by the first Load.
func NewPythonWorker(id int, cfg Config, logger *slog.Logger) *PythonWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Nets) == 0 {
		cfg.Nets = DefaultNets
	}
	return &PythonWorker{ID: id, cfg: cfg, logger: logger.With("worker", id)}
}

// spawn starts the interpreter with a side-channel pipe for results.
func (w *PythonWorker) spawn() error {
	// The process outlives any single request, so it is not bound to a request context
	py := utils.NewSafeCommand(context.Background(), w.cfg.Python, "-u", w.cfg.Script)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, wr, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{wr}

	stdin, err := py.StdinPipe()
	if err != nil {
		wr.Close() // Prevent FD leak
		r.Close()
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		wr.Close()
		r.Close()
		return fmt.Errorf("worker %d failed to start: %w", w.ID, err)
	}

	// Close the write-end in the parent so only the child holds it
	wr.Close()

	w.Cmd = py
	w.Stdin = stdin
	w.DataPipe = r
	return nil
}

// Load spawns the subprocess if needed and asks it to load the configured nets.
// It is idempotent once a load has succeeded. Any failure is reported as
// types.ErrModelLoadFailed and leaves the worker unloaded.
func (w *PythonWorker) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.Stdin == nil {
		if err := w.spawn(); err != nil {
			return fmt.Errorf("%w: %v", types.ErrModelLoadFailed, err)
		}
	}

	payload, err := json.Marshal(loadRequest{
		ModelDir:       w.cfg.ModelDir,
		Nets:           w.cfg.Nets,
		InputSize:      w.cfg.InputSize,
		ScoreThreshold: w.cfg.ScoreThreshold,
	})
	if err != nil {
		return err
	}

	// Model loading is the one call that honours cancellation: killing the
	// process is the only way to interrupt it.
	type result struct{ err error }
	done := make(chan result, 1)
	stdin, pipe := w.Stdin, w.DataPipe
	go func() {
		_, err := exchange(stdin, pipe, opLoad, payload)
		done <- result{err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			w.teardown()
			w.logger.Error("oracle failed to load models", "error", res.err, "logs", w.Cmd.Logs())
			return fmt.Errorf("%w: %v", types.ErrModelLoadFailed, res.err)
		}
	case <-ctx.Done():
		w.teardown()
		<-done
		return fmt.Errorf("%w: %v", types.ErrModelLoadFailed, ctx.Err())
	}

	w.loaded = true
	w.logger.Info("oracle models loaded", "nets", w.cfg.Nets, "model_dir", w.cfg.ModelDir)
	return nil
}

// DetectAll returns every face found in frame.
// There is no per-call timeout: a hung oracle blocks the caller.
func (w *PythonWorker) DetectAll(ctx context.Context, frame types.Frame) ([]types.Detection, error) {
	body, err := w.request(ctx, opDetectAll, frame.Data)
	if err != nil {
		return nil, err
	}
	var faces []types.Detection
	if err := json.Unmarshal(body, &faces); err != nil {
		return nil, fmt.Errorf("worker %d JSON malformed: %w", w.ID, err)
	}
	return faces, nil
}

// DetectOne returns the most confident face in frame, or nil when there is none.
func (w *PythonWorker) DetectOne(ctx context.Context, frame types.Frame) (*types.Detection, error) {
	body, err := w.request(ctx, opDetectOne, frame.Data)
	if err != nil {
		return nil, err
	}
	var face *types.Detection
	if err := json.Unmarshal(body, &face); err != nil {
		return nil, fmt.Errorf("worker %d JSON malformed: %w", w.ID, err)
	}
	return face, nil
}

func (w *PythonWorker) request(ctx context.Context, op byte, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return nil, fmt.Errorf("worker %d: models not loaded", w.ID)
	}
	body, err := exchange(w.Stdin, w.DataPipe, op, data)
	var pyErr *OracleError
	if err != nil && !errors.As(err, &pyErr) {
		// Pipe broken: the process is gone, force a reload next session
		w.logger.Error("oracle pipe failed", "error", err, "logs", w.Cmd.Logs())
		w.teardown()
	}
	return body, err
}

// OracleError is a logic error reported by the Python side (status byte 1).
type OracleError struct {
	Message string
}

func (e *OracleError) Error() string {
	return "python worker error: " + e.Message
}

// exchange performs one framed request/response round trip.
func exchange(stdin io.Writer, pipe io.Reader, op byte, data []byte) ([]byte, error) {
	// Protocol: [Length][Op][Data]
	if err := binary.Write(stdin, binary.BigEndian, uint32(len(data)+1)); err != nil {
		return nil, err
	}
	if _, err := stdin.Write([]byte{op}); err != nil {
		return nil, err
	}
	if _, err := stdin.Write(data); err != nil {
		return nil, err
	}

	// Read Result from the clean DataPipe, so no Magic Byte is needed.
	header := make([]byte, 4)
	if _, err := io.ReadFull(pipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen == 0 || respLen > maxResponse {
		return nil, fmt.Errorf("invalid response length %d", respLen)
	}
	respBody := make([]byte, respLen)
	if _, err := io.ReadFull(pipe, respBody); err != nil {
		return nil, err
	}

	switch respBody[0] {
	case statusOK:
		return respBody[1:], nil
	case statusError:
		return nil, &OracleError{Message: string(respBody[1:])}
	default:
		// Older oracles send {"error": "..."} objects instead of a status byte
		var errorResult types.ErrorResult
		if json.Unmarshal(respBody, &errorResult) == nil && errorResult.Error != "" {
			return nil, &OracleError{Message: errorResult.Error}
		}
		return nil, fmt.Errorf("unknown response status %d", respBody[0])
	}
}

// teardown closes the pipes and reaps the process. Callers hold w.mu.
func (w *PythonWorker) teardown() {
	if w.Stdin != nil {
		w.Stdin.Close()
	}
	if w.DataPipe != nil {
		w.DataPipe.Close()
	}
	if w.Cmd != nil && w.Cmd.Process != nil && w.Cmd.ProcessState == nil {
		_ = w.Cmd.Process.Kill()
		// Wait drains the stderr copier, so Cmd.Logs is complete afterwards
		_ = w.Cmd.Wait()
	}
	w.Stdin, w.DataPipe = nil, nil
	w.loaded = false
}

// Close stops the subprocess.
func (w *PythonWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Stdin == nil {
		return nil
	}
	// Closing stdin lets a well-behaved oracle exit on EOF before the kill
	w.Stdin.Close()
	w.Stdin = nil
	w.teardown()
	return nil
}
