// Package monitor watches challenge instances that got stuck mid-lifecycle
// and re-drives their teardown. Instances wedge in two ways: Terminating
// instances whose cleanup never finished, and Error instances whose last
// teardown attempt could not even be issued. Re-issuing is safe because
// teardown is idempotent; an instance leaves the store once its pod is gone
// from the cluster.
package monitor

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cyberedu/rangectl/pkg/cache"
	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/logger"
)

// InstanceStatus is the stuck-lifecycle state of one challenge instance.
type InstanceStatus string

const (
	StatusTerminating InstanceStatus = "Terminating"
	StatusError       InstanceStatus = "Error"
)

// Instance is one challenge environment owned by a student.
type Instance struct {
	ID         string
	Name       string
	Status     InstanceStatus
	RetryCount int
	UpdatedAt  time.Time
}

// InstanceStore tracks known stuck instances in memory.
type InstanceStore struct {
	backing cache.Cache
}

func NewInstanceStore() *InstanceStore {
	return &InstanceStore{backing: cache.New(cache.NoExpiration)}
}

func (s *InstanceStore) Put(inst Instance) {
	inst.UpdatedAt = time.Now()
	s.backing.Set(inst.ID, inst)
}

func (s *InstanceStore) Get(id string) (Instance, bool) {
	v, ok := s.backing.Get(id)
	if !ok {
		return Instance{}, false
	}
	return v.(Instance), true
}

func (s *InstanceStore) Delete(id string) {
	s.backing.Delete(id)
}

// ByStatus returns instances in the given status, oldest update first, so
// the longest-stuck instances are retried before fresher ones.
func (s *InstanceStore) ByStatus(status InstanceStatus) []Instance {
	var out []Instance
	s.backing.Range(func(_ string, value interface{}) bool {
		if inst, ok := value.(Instance); ok && inst.Status == status {
			out = append(out, inst)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}

// RetryFunc re-issues teardown for one stuck instance. Returning an error
// means the request could not be delivered at all, not that the instance is
// still terminating.
type RetryFunc func(ctx context.Context, inst Instance) error

// Monitor periodically scans for stuck instances and retries a bounded
// number per pass, so one bad batch cannot monopolize the cluster.
type Monitor struct {
	store    *InstanceStore
	log      *logger.Logger
	retry    RetryFunc
	Limit    int
	Interval time.Duration

	inFlight atomic.Bool
}

func New(store *InstanceStore, log *logger.Logger, retry RetryFunc) *Monitor {
	return &Monitor{
		store:    store,
		log:      log,
		retry:    retry,
		Limit:    common.DefaultMonitorScanLimit,
		Interval: 60 * time.Second,
	}
}

// ScanTerminating re-issues teardown for instances stuck in Terminating,
// capped at the scan limit. Instances whose request could not be delivered
// move to Error with the reason logged; the errored scan picks them up
// later. It returns how many teardowns were re-issued.
func (m *Monitor) ScanTerminating(ctx context.Context) int {
	stuck := m.capped(StatusTerminating)

	retried := 0
	for _, inst := range stuck {
		if ctx.Err() != nil {
			break
		}
		m.log.Infof("re-issuing teardown for terminating instance %s", inst.Name)
		if err := m.retry(ctx, inst); err != nil {
			m.log.Warnf("teardown of instance %s could not be issued: %v", inst.Name, err)
			inst.Status = StatusError
			m.store.Put(inst)
			continue
		}
		// Fresh timestamp sends it to the back of the queue while the
		// cluster works through the deletion.
		m.store.Put(inst)
		retried++
	}
	return retried
}

// ScanErrored moves errored instances back to Terminating and re-issues
// teardown, bumping the retry count. A failed re-issue drops the instance
// back to Error for the next pass.
func (m *Monitor) ScanErrored(ctx context.Context) int {
	stuck := m.capped(StatusError)

	retried := 0
	for _, inst := range stuck {
		if ctx.Err() != nil {
			break
		}
		inst.Status = StatusTerminating
		inst.RetryCount++
		m.log.Infof("retrying teardown of errored instance %s (attempt %d)", inst.Name, inst.RetryCount)
		if err := m.retry(ctx, inst); err != nil {
			m.log.Warnf("retry of instance %s failed: %v", inst.Name, err)
			inst.Status = StatusError
		} else {
			retried++
		}
		m.store.Put(inst)
	}
	return retried
}

func (m *Monitor) capped(status InstanceStatus) []Instance {
	stuck := m.store.ByStatus(status)
	if len(stuck) > m.Limit {
		stuck = stuck[:m.Limit]
	}
	return stuck
}

// Run scans on a ticker until the context ends. A single-flight guard drops
// ticks that land while a previous scan is still working through slow
// cluster operations.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.inFlight.CompareAndSwap(false, true) {
				continue
			}
			m.ScanTerminating(ctx)
			m.ScanErrored(ctx)
			m.inFlight.Store(false)
		}
	}
}
