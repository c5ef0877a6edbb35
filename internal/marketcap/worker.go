package marketcap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sells-group/carbon-dashboard/internal/config"
)

const workerWaitDelay = time.Second

// Worker fetches market caps by running an external program that speaks a
// one-shot JSON protocol: {"symbols": [...]} on stdin, and
// {"results": {symbol: number}, "missingYfinance": bool, "error": string} on
// stdout.
type Worker struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// NewWorker builds the worker from configuration. The script path is made
// absolute against the working directory.
func NewWorker(cfg config.MarketCapConfig) *Worker {
	w := &Worker{
		Command: cfg.WorkerCommand,
		Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}
	if cfg.WorkerScript != "" {
		script := cfg.WorkerScript
		if abs, err := filepath.Abs(script); err == nil {
			script = abs
		}
		w.Args = []string{script}
	}
	return w
}

type workerRequest struct {
	Symbols []string `json:"symbols"`
}

type workerResponse struct {
	Results         map[string]any `json:"results"`
	MissingProvider bool           `json:"missingYfinance"`
	Error           string         `json:"error"`
}

// Fetch runs the worker once for symbols. An empty batch does not start the
// process. The process is bounded by the worker's own timeout only and is
// killed when it elapses; the caller's cancellation does not reach it.
func (w *Worker) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	ctx = context.WithoutCancel(ctx)
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(workerRequest{Symbols: symbols})
	if err != nil {
		return nil, &FetchError{Reason: "worker-request-encoding", Err: err}
	}

	cmd := exec.CommandContext(ctx, w.Command, w.Args...)
	if len(w.Env) > 0 {
		cmd.Env = append(os.Environ(), w.Env...)
	}
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = workerWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &FetchError{Reason: "failed-to-spawn:" + w.Command, Err: err}
	}
	runErr := cmd.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &FetchError{Reason: fmt.Sprintf("worker-timeout:%dms", w.Timeout.Milliseconds()), Err: ctx.Err()}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		reason := "worker-empty-output"
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			reason += ":" + msg
		}
		return nil, &FetchError{Reason: reason, Err: runErr}
	}

	var resp workerResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, &FetchError{Reason: "worker-invalid-json-output", Err: err}
	}
	if resp.MissingProvider {
		return nil, &FetchError{Reason: ReasonProviderMissing, MissingProvider: true}
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return nil, &FetchError{Reason: msg}
	}
	if runErr != nil {
		return nil, &FetchError{Reason: "worker-process-error:" + w.Command, Err: runErr}
	}

	results := make(map[string]float64, len(resp.Results))
	for symbol, raw := range resp.Results {
		key := NormalizeTicker(symbol)
		n, isNumber := raw.(float64)
		if key == "" || !isNumber {
			continue
		}
		if v, ok := positive(n); ok {
			results[key] = v
		}
	}
	return results, nil
}
