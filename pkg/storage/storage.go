// Package storage decides where the database keeps its data: a storage
// class that demonstrably provisions, or a host-local directory fallback.
// It also cleans up claims and volumes that dead provisioners left stuck.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/cyberedu/rangectl/pkg/applier"
	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/manifest"
	"github.com/cyberedu/rangectl/pkg/runner"
)

// ErrProvisioningFailed marks a storage class that cannot satisfy a claim.
// It triggers the host-local fallback, never a terminal failure.
var ErrProvisioningFailed = errors.New("storage class failed provisioning probe")

const defaultClassAnnotation = "storageclass.kubernetes.io/is-default-class"

// StorageClass describes a discovered class.
type StorageClass struct {
	Name        string
	Provisioner string
	IsDefault   bool
}

// Decision is the storage outcome for one database install, computed once.
type Decision struct {
	StorageClassName   string
	FallbackToHostPath bool
	HostPath           string
}

// ProbeOutcome is the result of a provisioning probe.
type ProbeOutcome int

const (
	ProbeBound ProbeOutcome = iota
	ProbeFailed
)

// Reconciler implements storage discovery, probing, fallback bootstrap and
// stuck-resource cleanup.
type Reconciler struct {
	rnr  runner.Runner
	conn connector.Connector
	app  *applier.Applier
	log  *logger.Logger

	// Node pins the host-local fallback volume; HostPathRoot is the parent
	// directory bootstrapped on that node.
	Node         string
	HostPathRoot string

	// Wait tuning, overridable in tests.
	ProbeTimeout  time.Duration
	HelperTimeout time.Duration
	PollInterval  time.Duration
}

func NewReconciler(rnr runner.Runner, conn connector.Connector, app *applier.Applier, log *logger.Logger, node, hostPathRoot string) *Reconciler {
	return &Reconciler{
		rnr: rnr, conn: conn, app: app, log: log,
		Node: node, HostPathRoot: hostPathRoot,
		ProbeTimeout:  common.ProbeBindTimeout,
		HelperTimeout: common.HelperPodTimeout,
		PollInterval:  3 * time.Second,
	}
}

// DiscoverStorageClasses lists the cluster's storage classes, the
// default-annotated one first.
func (r *Reconciler) DiscoverStorageClasses(ctx context.Context) ([]StorageClass, error) {
	out, err := r.rnr.KubectlGet(ctx, r.conn, "storageclasses", "", runner.KubectlGetOptions{OutputFormat: "json", IgnoreNotFound: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list storage classes")
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}

	var classes []StorageClass
	for _, item := range gjson.Get(out, "items").Array() {
		sc := StorageClass{
			Name:        item.Get("metadata.name").String(),
			Provisioner: item.Get("provisioner").String(),
			IsDefault:   item.Get("metadata.annotations").Get(strings.ReplaceAll(defaultClassAnnotation, ".", "\\.")).String() == "true",
		}
		if sc.IsDefault {
			classes = append([]StorageClass{sc}, classes...)
		} else {
			classes = append(classes, sc)
		}
	}
	return classes, nil
}

// ProvisionTest probes whether className can actually bind a claim. Class
// availability does not guarantee successful dynamic provisioning on
// constrained clusters, so a minimal scratch claim is created, awaited
// briefly, its events inspected, and the claim removed again whatever the
// outcome.
func (r *Reconciler) ProvisionTest(ctx context.Context, namespace, className string) (ProbeOutcome, error) {
	scratchName := common.ScratchClaimPrefix + uuid.NewString()[:8]
	class := className
	desc, err := manifest.PersistentVolumeClaim(scratchName, namespace, &class, "10Mi")
	if err != nil {
		return ProbeFailed, err
	}
	if _, err := r.app.Apply(ctx, desc); err != nil {
		return ProbeFailed, errors.Wrap(err, "failed to create scratch claim")
	}
	// The scratch claim never outlives the probe.
	defer func() {
		if err := r.app.Remove(context.Background(), "pvc", scratchName, namespace); err != nil {
			r.log.Warnf("failed to remove scratch claim %s: %v", scratchName, err)
		}
	}()

	waitErr := r.app.WaitFor(ctx, applier.WaitOptions{
		Kind:            "pvc",
		Name:            scratchName,
		Namespace:       namespace,
		Predicate:       applier.PVCBound,
		TimeoutSeconds:  int(r.ProbeTimeout / time.Second),
		IntervalSeconds: int(r.PollInterval / time.Second),
	})
	if waitErr == nil {
		r.log.Infof("storage class %s passed provisioning probe", className)
		return ProbeBound, nil
	}

	if failed, reason := r.provisioningFailureSignal(ctx, namespace, scratchName); failed {
		r.log.Warnf("storage class %s cannot provision: %s", className, reason)
		return ProbeFailed, nil
	}
	// No explicit failure event either; the class is treated as unusable
	// rather than blocking the install on an unbound claim.
	r.log.Warnf("storage class %s did not bind within %s", className, r.ProbeTimeout)
	return ProbeFailed, nil
}

func (r *Reconciler) provisioningFailureSignal(ctx context.Context, namespace, claimName string) (bool, string) {
	out, err := r.rnr.KubectlGet(ctx, r.conn, "events", "", runner.KubectlGetOptions{
		Namespace:     namespace,
		OutputFormat:  "json",
		FieldSelector: "involvedObject.name=" + claimName,
	})
	if err != nil {
		return false, ""
	}
	for _, ev := range gjson.Get(out, "items").Array() {
		reason := ev.Get("reason").String()
		message := ev.Get("message").String()
		if reason == "ProvisioningFailed" || strings.Contains(message, "no persistent volumes available") {
			return true, message
		}
	}
	return false, ""
}

// Decide computes the storage decision: the first class passing the probe
// wins; with none usable, the host-local fallback directory is bootstrapped
// and selected.
func (r *Reconciler) Decide(ctx context.Context, namespace string, classes []StorageClass) (Decision, error) {
	for _, sc := range classes {
		outcome, err := r.ProvisionTest(ctx, namespace, sc.Name)
		if err != nil {
			return Decision{}, err
		}
		if outcome == ProbeBound {
			return Decision{StorageClassName: sc.Name}, nil
		}
	}

	hostPath := r.HostPathRoot + "/postgres"
	if err := r.bootstrapHostPath(ctx, namespace, hostPath); err != nil {
		return Decision{}, errors.Wrap(err, "host-local fallback bootstrap failed")
	}
	r.log.Infof("falling back to host-local storage at %s on node %s", hostPath, r.Node)
	return Decision{FallbackToHostPath: true, HostPath: hostPath}, nil
}

// bootstrapHostPath prepares the fallback directory on the pinned node via a
// short-lived helper pod: clean when pre-existing, then create and open up
// permissions so the database container can write regardless of its uid.
func (r *Reconciler) bootstrapHostPath(ctx context.Context, namespace, hostPath string) error {
	podName := common.HelperPodPrefix + uuid.NewString()[:8]
	dirName := hostPath[strings.LastIndex(hostPath, "/")+1:]
	cmd := fmt.Sprintf("rm -rf /target/%s && mkdir -p /target/%s && chmod 0777 /target/%s", dirName, dirName, dirName)

	desc, err := manifest.HelperPod(podName, namespace, r.Node, r.HostPathRoot, cmd)
	if err != nil {
		return err
	}
	if _, err := r.app.Apply(ctx, desc); err != nil {
		return err
	}
	defer func() {
		if err := r.app.Remove(context.Background(), "pod", podName, namespace); err != nil {
			r.log.Warnf("failed to remove helper pod %s: %v", podName, err)
		}
	}()

	return r.app.WaitFor(ctx, applier.WaitOptions{
		Kind:            "pods",
		Name:            podName,
		Namespace:       namespace,
		Predicate:       applier.PodSucceeded,
		TimeoutSeconds:  int(r.HelperTimeout / time.Second),
		IntervalSeconds: int(r.PollInterval / time.Second),
	})
}
