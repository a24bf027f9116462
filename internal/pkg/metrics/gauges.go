package metrics

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

// Snapshot is one reading of the state gauges.
type Snapshot struct {
	PendingRequests     int64
	ActiveSubscriptions int64
	QueuedJobs          int64
}

// SnapshotFunc reads the current gauge values.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// Apply sets the gauges from s.
func Apply(s Snapshot) {
	pendingRequests.Set(float64(s.PendingRequests))
	activeSubscriptions.Set(float64(s.ActiveSubscriptions))
	queuedJobs.Set(float64(s.QueuedJobs))
}

// GaugeRefresher periodically refreshes the state gauges on a cron schedule.
type GaugeRefresher struct {
	cron     *cron.Cron
	snapshot SnapshotFunc
	timeout  time.Duration
}

// NewGaugeRefresher schedules snapshot with a standard cron spec, e.g. "@every 1m".
func NewGaugeRefresher(spec string, snapshot SnapshotFunc) (*GaugeRefresher, error) {
	r := &GaugeRefresher{
		cron:     cron.New(),
		snapshot: snapshot,
		timeout:  20 * time.Second,
	}
	if _, err := r.cron.AddFunc(spec, r.Refresh); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh takes one snapshot and updates the gauges.
func (r *GaugeRefresher) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	s, err := r.snapshot(ctx)
	if err != nil {
		log.Warnf("[Metrics] Gauge refresh failed: %v", err)
		return
	}
	Apply(s)
}

func (r *GaugeRefresher) Start() {
	r.Refresh()
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh.
func (r *GaugeRefresher) Stop() {
	<-r.cron.Stop().Done()
}
