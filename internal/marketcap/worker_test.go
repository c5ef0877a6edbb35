package marketcap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carbon-dashboard/internal/config"
)

func fetchErr(t *testing.T, err error) *FetchError {
	t.Helper()
	require.Error(t, err)
	var fe *FetchError
	require.True(t, errors.As(err, &fe), "expected *FetchError, got %T", err)
	return fe
}

func TestWorker_Success(t *testing.T) {
	w := helperWorkerFor("ok", 10*time.Second)

	got, err := w.Fetch(context.Background(), []string{"005930.KS", "7203.T", "NOPE.KS"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"005930.KS": 1.5e12,
		"7203.T":    1.5e12,
	}, got)
}

func TestWorker_EmptyBatchDoesNotSpawn(t *testing.T) {
	w := &Worker{Command: "/definitely/not/a/real/binary"}
	got, err := w.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWorker_Failures(t *testing.T) {
	tests := []struct {
		mode    string
		reason  string
		missing bool
	}{
		{"empty", "worker-empty-output:Traceback: boom", false},
		{"badjson", "worker-invalid-json-output", false},
		{"error", "network_or_dns_failure", false},
		{"missing", ReasonProviderMissing, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			w := helperWorkerFor(tt.mode, 10*time.Second)
			_, err := w.Fetch(context.Background(), []string{"005930.KS"})
			fe := fetchErr(t, err)
			assert.Equal(t, tt.reason, fe.Reason)
			assert.Equal(t, tt.missing, fe.MissingProvider)
		})
	}
}

func TestWorker_NonZeroExit(t *testing.T) {
	w := helperWorkerFor("exit", 10*time.Second)
	_, err := w.Fetch(context.Background(), []string{"005930.KS"})
	fe := fetchErr(t, err)
	assert.True(t, strings.HasPrefix(fe.Reason, "worker-process-error:"), fe.Reason)
}

func TestWorker_Timeout(t *testing.T) {
	w := helperWorkerFor("sleep", 300*time.Millisecond)

	start := time.Now()
	_, err := w.Fetch(context.Background(), []string{"005930.KS"})
	fe := fetchErr(t, err)
	assert.Equal(t, "worker-timeout:300ms", fe.Reason)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWorker_IgnoresCallerDeadline(t *testing.T) {
	w := helperWorkerFor("slow", 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := w.Fetch(ctx, []string{"005930.KS"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"005930.KS": 4e14}, got)
}

func TestWorker_SpawnFailure(t *testing.T) {
	w := &Worker{Command: "/definitely/not/a/real/binary", Timeout: time.Second}
	_, err := w.Fetch(context.Background(), []string{"005930.KS"})
	fe := fetchErr(t, err)
	assert.Equal(t, "failed-to-spawn:/definitely/not/a/real/binary", fe.Reason)
	assert.Contains(t, fe.Error(), "failed-to-spawn")
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(config.MarketCapConfig{WorkerCommand: "python3", WorkerScript: "scripts/market_cap_yfinance.py", TimeoutMs: 8000})
	assert.Equal(t, "python3", w.Command)
	require.Len(t, w.Args, 1)
	assert.True(t, strings.HasSuffix(w.Args[0], "scripts/market_cap_yfinance.py"))
	assert.True(t, strings.HasPrefix(w.Args[0], "/"))
	assert.Equal(t, 8*time.Second, w.Timeout)

	bare := NewWorker(config.MarketCapConfig{WorkerCommand: "mcap-worker"})
	assert.Empty(t, bare.Args)
}
