package installer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/monitor"
	"github.com/cyberedu/rangectl/pkg/runner"
)

// NewInstanceMonitor builds the stuck-instance retry monitor together with
// its backing store. The retry re-issues teardown by force-deleting the
// instance pod; the graceful path already failed once by the time an
// instance lands in the store.
func (ins *Installer) NewInstanceMonitor() (*monitor.Monitor, *monitor.InstanceStore) {
	store := monitor.NewInstanceStore()
	mon := monitor.New(store, ins.log, ins.retryInstance)
	mon.Limit = ins.cfg.Instances.ScanLimit
	mon.Interval = time.Duration(ins.cfg.Instances.IntervalSeconds) * time.Second
	return mon, store
}

// SyncInstances refreshes the store from live pods carrying the instance
// label. Only wedged pods enter the store; instances whose pods recovered or
// disappeared are dropped. Retry counts of instances already tracked survive
// the refresh.
func (ins *Installer) SyncInstances(ctx context.Context, store *monitor.InstanceStore) error {
	out, err := ins.rnr.KubectlGet(ctx, ins.conn, "pods", "", runner.KubectlGetOptions{
		Namespace:    ins.cfg.Namespace,
		OutputFormat: "json",
		Selector:     common.InstanceLabel,
	})
	if err != nil {
		return errors.Wrap(classify(err), "failed to list challenge instance pods")
	}

	healthy := map[string]bool{}
	stuck := map[string]bool{}
	for _, item := range gjson.Get(out, "items").Array() {
		id := item.Get(fmt.Sprintf("metadata.labels.%s", escapeLabelKey(common.InstanceLabel))).String()
		if id == "" {
			continue
		}
		status, wedged := instanceStatusOf(item)
		if !wedged {
			healthy[id] = true
			continue
		}
		stuck[id] = true
		inst := monitor.Instance{
			ID:     id,
			Name:   item.Get("metadata.name").String(),
			Status: status,
		}
		if prev, ok := store.Get(id); ok {
			inst.RetryCount = prev.RetryCount
			// A locally recorded Error outranks the pod view: the pod may
			// still look Terminating while our last delete never landed.
			if prev.Status == monitor.StatusError && status == monitor.StatusTerminating {
				inst.Status = prev.Status
			}
		}
		store.Put(inst)
	}

	for _, status := range []monitor.InstanceStatus{monitor.StatusTerminating, monitor.StatusError} {
		for _, inst := range store.ByStatus(status) {
			if !stuck[inst.ID] {
				if healthy[inst.ID] {
					ins.log.Infof("instance %s recovered, dropping from retry tracking", inst.Name)
				}
				store.Delete(inst.ID)
			}
		}
	}
	return nil
}

func (ins *Installer) retryInstance(ctx context.Context, inst monitor.Instance) error {
	grace := 0
	err := ins.rnr.KubectlDelete(ctx, ins.conn, "pod", inst.Name, runner.KubectlDeleteOptions{
		Namespace:      ins.cfg.Namespace,
		Force:          true,
		GracePeriod:    &grace,
		IgnoreNotFound: true,
	})
	if err != nil {
		return errors.Wrapf(classify(err), "failed to delete pod '%s' for instance %s", inst.Name, inst.ID)
	}
	return nil
}

// escapeLabelKey keeps the dots inside a label key from being read as gjson
// path separators.
func escapeLabelKey(key string) string {
	return strings.ReplaceAll(key, ".", "\\.")
}

// instanceStatusOf classifies a pod into the stuck-instance lifecycle. A set
// deletionTimestamp means teardown started and never finished; a Failed
// phase or a crash-looping container means the instance is dead weight that
// needs tearing down. Healthy pods are not tracked.
func instanceStatusOf(pod gjson.Result) (monitor.InstanceStatus, bool) {
	if pod.Get("metadata.deletionTimestamp").Exists() {
		return monitor.StatusTerminating, true
	}
	if pod.Get("status.phase").String() == "Failed" {
		return monitor.StatusError, true
	}
	for _, cs := range pod.Get("status.containerStatuses").Array() {
		switch cs.Get("state.waiting.reason").String() {
		case "CrashLoopBackOff", "ImagePullBackOff", "ErrImagePull":
			return monitor.StatusError, true
		}
	}
	return "", false
}
