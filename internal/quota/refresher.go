// internal/quota/refresher.go
package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/draftsync/pkg/backend"
)

// Refresher periodically pulls the server's quota view and applies it as
// truth, keeping the local counter honest between sends.
type Refresher struct {
	tracker *Tracker
	svc     backend.Service
	spec    string
	cron    *cron.Cron
}

// cronParser accepts standard 5-field cron expressions plus descriptors
// like @every 5m.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewRefresher creates a Refresher firing on the given cron spec.
func NewRefresher(tracker *Tracker, svc backend.Service, spec string) *Refresher {
	return &Refresher{
		tracker: tracker,
		svc:     svc,
		spec:    spec,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the refresh job and starts the cron ticker. An immediate
// refresh runs in the background so startup does not depend on a stale
// snapshot for long.
func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc(r.spec, r.refresh); err != nil {
		return err
	}
	r.cron.Start()
	go r.refresh()
	return nil
}

// Stop stops the cron ticker.
func (r *Refresher) Stop() {
	r.cron.Stop()
}

// refresh fetches server truth. Failures are logged and skipped; the next
// tick or the next send response will supply a fresh value.
func (r *Refresher) refresh() {
	r.tracker.beginRefresh()
	defer r.tracker.endRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := r.svc.RateLimit(ctx)
	if err != nil {
		slog.Warn("rate limit refresh failed", "error", err)
		return
	}
	r.tracker.ApplyServerTruth(*st)
	slog.Debug("rate limit refreshed", "remaining", st.Remaining, "limit", st.Limit)
}
