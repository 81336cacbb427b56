package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/YashJadhav21/ProteinDock/internal/config"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// VinaRunner executes the AutoDock Vina engine script as a subprocess.
type VinaRunner struct {
	python string
	script string
}

// NewVinaRunner builds a runner from the engine config.
func NewVinaRunner(cfg config.EngineConfig) *VinaRunner {
	return &VinaRunner{python: cfg.Python, script: cfg.Script}
}

// Method implements Runner.
func (r *VinaRunner) Method() string {
	return models.MethodVina
}

// Dock implements Runner. It writes the request to the engine's stdin,
// closes it, and drains stdout frames until the process exits. A terminal
// success frame is only honored when the process also exits 0.
func (r *VinaRunner) Dock(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.python, r.script)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("encoding engine request: %w", err)
	}
	// Write the single request then close; the engine reads stdin to EOF.
	if _, err := stdin.Write(payload); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: writing request: %v", ErrProtocol, err)
	}
	_ = stdin.Close()

	result, dec, streamErr := drainFrames(stdout, onProgress)

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitErr != nil {
		// Non-zero exit overrides any success frame already seen.
		return nil, fmt.Errorf("%w: %v: %s", ErrProtocol, waitErr, failureDetail(&stderr, dec))
	}
	if streamErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, streamErr)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: engine exited without a result: %s", ErrProtocol, failureDetail(&stderr, dec))
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("%w: engine reported status %q: %s", ErrProtocol, result.Status, failureDetail(&stderr, dec))
	}
	return result, nil
}

// drainFrames consumes the stdout stream to EOF, forwarding progress events
// and retaining the last terminal frame. The stream is always read fully so
// the process cannot block on a full pipe.
func drainFrames(stdout io.Reader, onProgress ProgressFunc) (*Result, *Decoder, error) {
	dec := NewDecoder(stdout)
	var result *Result
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return result, dec, nil
		}
		if err != nil {
			return nil, dec, err
		}

		if frame.Progress != nil && onProgress != nil {
			onProgress(*frame.Progress, frame.Message)
		}
		if !frame.Terminal() {
			continue
		}

		var res Result
		if err := json.Unmarshal(frame.Raw, &res); err != nil {
			slog.Warn("undecodable terminal frame from engine", "error", err)
			continue
		}
		result = &res
	}
}

// failureDetail assembles a short human-readable reason from stderr and any
// diagnostic lines the engine printed.
func failureDetail(stderr *bytes.Buffer, dec *Decoder) string {
	var parts []string
	if s := strings.TrimSpace(stderr.String()); s != "" {
		parts = append(parts, tail(s, 500))
	}
	if dec != nil {
		if diags := dec.Diagnostics(); len(diags) > 0 {
			parts = append(parts, strings.Join(diags, "; "))
		}
	}
	if len(parts) == 0 {
		return "no engine output"
	}
	return strings.Join(parts, " | ")
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
