// Package applier implements idempotent manifest operations against the
// control plane: upsert apply, tolerant remove, and condition waits.
package applier

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/manifest"
	"github.com/cyberedu/rangectl/pkg/runner"
)

// ResourceRef identifies an applied resource.
type ResourceRef struct {
	Kind      string
	Name      string
	Namespace string
}

// ErrWaitTimeout is returned when a waited-for condition is not met in time.
var ErrWaitTimeout = errors.New("timed out waiting for condition")

// Applier funnels all manifest operations through the command-execution
// collaborator.
type Applier struct {
	rnr  runner.Runner
	conn connector.Connector
	log  *logger.Logger
}

func New(rnr runner.Runner, conn connector.Connector, log *logger.Logger) *Applier {
	return &Applier{rnr: rnr, conn: conn, log: log}
}

// Apply upserts a resource. Reapplying an unchanged manifest is a no-op and
// applying to an existing named resource updates it; both count as success.
func (a *Applier) Apply(ctx context.Context, desc manifest.ResourceDescriptor) (ResourceRef, error) {
	out, err := a.rnr.KubectlApply(ctx, a.conn, runner.KubectlApplyOptions{
		FileContent: desc.RenderedManifest,
		Namespace:   desc.Namespace,
	})
	if err != nil {
		return ResourceRef{}, errors.Wrapf(err, "apply of %s/%s failed", desc.Kind, desc.Name)
	}
	a.log.Debugf("applied %s/%s: %s", desc.Kind, desc.Name, out)
	return ResourceRef{Kind: desc.Kind, Name: desc.Name, Namespace: desc.Namespace}, nil
}

// Remove deletes a resource, treating "not found" as success.
func (a *Applier) Remove(ctx context.Context, kind, name, namespace string) error {
	err := a.rnr.KubectlDelete(ctx, a.conn, kind, name, runner.KubectlDeleteOptions{
		Namespace:      namespace,
		IgnoreNotFound: true,
	})
	if err != nil {
		return errors.Wrapf(err, "remove of %s/%s failed", kind, name)
	}
	return nil
}

// Predicate evaluates one resource's JSON representation.
type Predicate func(obj gjson.Result) bool

// WaitOptions configures a condition wait. Either Name or Selector selects
// the watched resources.
type WaitOptions struct {
	Kind            string
	Name            string
	Selector        string
	Namespace       string
	Predicate       Predicate
	TimeoutSeconds  int
	IntervalSeconds int
}

// WaitFor polls the selected resources until the predicate holds for every
// matched object (and at least one matched), or the timeout elapses with
// ErrWaitTimeout. Each poll shells out to `kubectl get -o json`.
func (a *Applier) WaitFor(ctx context.Context, opts WaitOptions) error {
	if opts.Kind == "" || opts.Predicate == nil {
		return errors.New("Kind and Predicate are required for WaitFor")
	}
	if opts.Name == "" && opts.Selector == "" {
		return errors.New("either Name or Selector is required for WaitFor")
	}

	interval := time.Duration(opts.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	deadline := time.Now().Add(timeout)
	for {
		met, err := a.checkOnce(ctx, opts)
		if err != nil {
			a.log.Debugf("waitFor %s poll error (will retry): %v", opts.Kind, err)
		} else if met {
			return nil
		}

		if time.Now().After(deadline) {
			return errors.Wrapf(ErrWaitTimeout, "%s %s%s in %s after %s",
				opts.Kind, opts.Name, opts.Selector, opts.Namespace, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (a *Applier) checkOnce(ctx context.Context, opts WaitOptions) (bool, error) {
	out, err := a.rnr.KubectlGet(ctx, a.conn, opts.Kind, opts.Name, runner.KubectlGetOptions{
		Namespace:      opts.Namespace,
		Selector:       opts.Selector,
		OutputFormat:   "json",
		IgnoreNotFound: true,
	})
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(out) == "" {
		return false, nil
	}

	parsed := gjson.Parse(out)
	if parsed.Get("kind").String() == "List" || parsed.Get("items").Exists() {
		items := parsed.Get("items").Array()
		if len(items) == 0 {
			return false, nil
		}
		for _, item := range items {
			if !opts.Predicate(item) {
				return false, nil
			}
		}
		return true, nil
	}
	return opts.Predicate(parsed), nil
}

// PodReady holds when the pod reports the Ready condition true.
func PodReady(obj gjson.Result) bool {
	if obj.Get("status.phase").String() != "Running" {
		return false
	}
	for _, cond := range obj.Get("status.conditions").Array() {
		if cond.Get("type").String() == "Ready" && cond.Get("status").String() == "True" {
			return true
		}
	}
	return false
}

// PVCBound holds when the claim is bound to a volume.
func PVCBound(obj gjson.Result) bool {
	return obj.Get("status.phase").String() == "Bound"
}

// PodSucceeded holds when an ephemeral pod reached the terminal success
// phase.
func PodSucceeded(obj gjson.Result) bool {
	return obj.Get("status.phase").String() == "Succeeded"
}
