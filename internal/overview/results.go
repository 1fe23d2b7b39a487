package overview

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/qbportal/internal/credentials"
	"github.com/odyssey-erp/qbportal/internal/qbo"
)

// Results holds the outcome of one batch of upstream calls, by key.
type Results struct {
	bodies map[string]json.RawMessage
	errs   map[string]error
}

// Body returns the response of key, or false when the call failed or was
// not part of the batch.
func (r Results) Body(key string) (json.RawMessage, bool) {
	body, ok := r.bodies[key]
	return body, ok
}

// Err returns the failure recorded for key.
func (r Results) Err(key string) error {
	return r.errs[key]
}

// Complete reports whether every call in the batch succeeded.
func (r Results) Complete() bool {
	return len(r.errs) == 0
}

// Failed lists the keys whose calls failed.
func (r Results) Failed() []string {
	keys := make([]string, 0, len(r.errs))
	for key := range r.errs {
		keys = append(keys, key)
	}
	return keys
}

// fetch issues the calls named by keys concurrently. A failing call never
// aborts the others; its error is recorded against its key.
func (s *Service) fetch(ctx context.Context, cred credentials.Credential, keys []string, now time.Time) Results {
	ranges := RangesAt(now)
	res := Results{
		bodies: make(map[string]json.RawMessage, len(keys)),
		errs:   make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		call, ok := catalog[key]
		if !ok {
			continue
		}
		g.Go(func() error {
			body, err := call(qbo.WithCallName(gctx, key), s.api, cred, ranges)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.errs[key] = err
				s.logger.Warn("upstream call failed", slog.String("report", key), slog.String("user_id", cred.UserID), slog.Any("error", err))
				return nil
			}
			res.bodies[key] = body
			return nil
		})
	}
	_ = g.Wait()
	return res
}
