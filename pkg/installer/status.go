package installer

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/runner"
	"github.com/cyberedu/rangectl/pkg/state"
)

// ComponentStatus pairs the recorded step state with what the cluster
// actually reports right now.
type ComponentStatus struct {
	Component string
	Step      state.InstallationStep
	// Live is the cluster-side observation: pod readiness for the database,
	// release status for the helm components. Empty when nothing was found.
	Live string
}

// StatusReport is the full picture handed to the status command.
type StatusReport struct {
	Components     []ComponentStatus
	CompletedSteps []string
}

// CheckStatus reconciles the in-process step records with live cluster
// observations. The step store is process-local, so after a restart the
// live column is what tells an operator whether a component is actually up.
func (ins *Installer) CheckStatus(ctx context.Context) StatusReport {
	report := StatusReport{CompletedSteps: ins.store.CompletedSteps()}

	report.Components = append(report.Components, ComponentStatus{
		Component: common.ComponentDatabase,
		Step:      ins.store.Get(common.ComponentDatabase),
		Live:      ins.databaseLive(ctx),
	})
	report.Components = append(report.Components, ComponentStatus{
		Component: common.ComponentIngress,
		Step:      ins.store.Get(common.ComponentIngress),
		Live:      ins.releaseLive(ctx, ingressReleaseName, ingressNamespace),
	})
	report.Components = append(report.Components, ComponentStatus{
		Component: common.ComponentCertManager,
		Step:      ins.store.Get(common.ComponentCertManager),
		Live:      ins.releaseLive(ctx, certReleaseName, certNamespace),
	})
	return report
}

func (ins *Installer) databaseLive(ctx context.Context) string {
	out, err := ins.rnr.KubectlGet(ctx, ins.conn, "deployment", common.DatabaseDeploymentName, runner.KubectlGetOptions{
		Namespace:      ins.cfg.Namespace,
		OutputFormat:   "json",
		IgnoreNotFound: true,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		return ""
	}
	ready := gjson.Get(out, "status.readyReplicas").Int()
	want := gjson.Get(out, "spec.replicas").Int()
	if ready >= want && want > 0 {
		return "ready"
	}
	return "not ready"
}

func (ins *Installer) releaseLive(ctx context.Context, release, namespace string) string {
	status, err := ins.rnr.HelmStatus(ctx, ins.conn, release, runner.HelmStatusOptions{Namespace: namespace})
	if err != nil {
		return ""
	}
	return status
}
