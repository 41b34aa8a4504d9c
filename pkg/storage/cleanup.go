package storage

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cyberedu/rangectl/pkg/runner"
)

// ErrStuckResource marks a claim or volume that survived force deletion and
// finalizer clearing; manual intervention is required.
var ErrStuckResource = errors.New("resource stuck in terminating state")

// CleanupStuck removes a claim abandoned by a dead provisioner along with
// everything pinning it: pods still mounting it, then the claim itself, then
// any released or failed persistent volumes bound to it. Deletion escalates
// from force delete to clearing finalizers when the object refuses to go.
func (r *Reconciler) CleanupStuck(ctx context.Context, namespace, claimName string) error {
	pods, err := r.podsMountingClaim(ctx, namespace, claimName)
	if err != nil {
		return err
	}
	for _, pod := range pods {
		r.log.Warnf("force-deleting pod %s still mounting claim %s", pod, claimName)
		if err := r.deleteWithEscalation(ctx, "pod", pod, namespace); err != nil {
			return err
		}
	}

	if err := r.deleteWithEscalation(ctx, "pvc", claimName, namespace); err != nil {
		return err
	}

	pvs, err := r.orphanedVolumes(ctx, namespace, claimName)
	if err != nil {
		return err
	}
	for _, pv := range pvs {
		r.log.Warnf("removing orphaned persistent volume %s", pv)
		if err := r.deleteWithEscalation(ctx, "pv", pv, ""); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) podsMountingClaim(ctx context.Context, namespace, claimName string) ([]string, error) {
	out, err := r.rnr.KubectlGet(ctx, r.conn, "pods", "", runner.KubectlGetOptions{Namespace: namespace, OutputFormat: "json", IgnoreNotFound: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pods")
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	var pods []string
	for _, item := range gjson.Get(out, "items").Array() {
		for _, vol := range item.Get("spec.volumes").Array() {
			if vol.Get("persistentVolumeClaim.claimName").String() == claimName {
				pods = append(pods, item.Get("metadata.name").String())
				break
			}
		}
	}
	return pods, nil
}

func (r *Reconciler) orphanedVolumes(ctx context.Context, namespace, claimName string) ([]string, error) {
	out, err := r.rnr.KubectlGet(ctx, r.conn, "pv", "", runner.KubectlGetOptions{OutputFormat: "json", IgnoreNotFound: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list persistent volumes")
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	var pvs []string
	for _, item := range gjson.Get(out, "items").Array() {
		ref := item.Get("spec.claimRef")
		if ref.Get("name").String() != claimName || ref.Get("namespace").String() != namespace {
			continue
		}
		phase := item.Get("status.phase").String()
		if phase == "Released" || phase == "Failed" {
			pvs = append(pvs, item.Get("metadata.name").String())
		}
	}
	return pvs, nil
}

// deleteWithEscalation force-deletes the resource; when the delete hangs on
// finalizers it patches them away and retries once without waiting.
func (r *Reconciler) deleteWithEscalation(ctx context.Context, resourceType, name, namespace string) error {
	grace := 0
	err := r.rnr.KubectlDelete(ctx, r.conn, resourceType, name, runner.KubectlDeleteOptions{
		Namespace:      namespace,
		Force:          true,
		GracePeriod:    &grace,
		Wait:           true,
		Timeout:        15 * time.Second,
		IgnoreNotFound: true,
	})
	if err == nil {
		return nil
	}

	r.log.Warnf("%s/%s did not delete cleanly, clearing finalizers: %v", resourceType, name, err)
	patch, perr := sjson.Set("{}", "metadata.finalizers", nil)
	if perr != nil {
		return errors.Wrap(perr, "failed to build finalizer patch")
	}
	if err := r.rnr.KubectlPatch(ctx, r.conn, resourceType, name, runner.KubectlPatchOptions{
		Namespace: namespace,
		Type:      "merge",
		Patch:     patch,
	}); err != nil {
		// The patch races the delete; a vanished object is success.
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "not found") {
			return nil
		}
		return errors.Wrapf(ErrStuckResource, "%s/%s: finalizer patch failed: %v", resourceType, name, err)
	}

	err = r.rnr.KubectlDelete(ctx, r.conn, resourceType, name, runner.KubectlDeleteOptions{
		Namespace:      namespace,
		Force:          true,
		GracePeriod:    &grace,
		IgnoreNotFound: true,
	})
	if err != nil {
		return errors.Wrapf(ErrStuckResource, "%s/%s: %v", resourceType, name, err)
	}
	return nil
}
