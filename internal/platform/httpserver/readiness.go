package httpserver

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 2 * time.Second

func Healthz(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"service": service,
			"status":  "ok",
		})
	}
}

// ReadinessCheck is one dependency /readyz reports on, such as an
// interpreter binary or the audit database.
type ReadinessCheck struct {
	Name  string
	Check func(context.Context) error
}

type checkResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Readyz runs all checks concurrently, each bounded by timeout, and answers
// 503 when any of them fails.
func Readyz(service string, timeout time.Duration, checks ...ReadinessCheck) http.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		results := runChecks(r.Context(), timeout, checks)
		status, state := http.StatusOK, "ready"
		for _, res := range results {
			if res.Status != "ok" {
				status, state = http.StatusServiceUnavailable, "not_ready"
				break
			}
		}
		WriteJSON(w, status, map[string]any{
			"service": service,
			"status":  state,
			"checks":  results,
		})
	}
}

func runChecks(ctx context.Context, timeout time.Duration, checks []ReadinessCheck) []checkResult {
	results := make([]checkResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			res := checkResult{Name: c.Name, Status: "ok"}
			if err := c.Check(checkCtx); err != nil {
				res.Status = "fail"
				res.Error = err.Error()
			}
			res.DurationMs = time.Since(start).Milliseconds()
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
