package installer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/runner"
)

// ForceCancel aborts whatever state a component is in and returns it to
// NotStarted. Unlike Uninstall it does not consult the state machine: a
// wedged install may be in any status, so teardown runs unconditionally and
// tolerates every missing resource. Stuck claims go through the escalating
// cleanup path.
func (ins *Installer) ForceCancel(ctx context.Context, component string) (Result, error) {
	ins.beginRun()
	ins.record("force-cancelling %s", component)

	var err error
	switch component {
	case common.ComponentDatabase:
		err = ins.forceCancelDatabase(ctx)
	case common.ComponentIngress:
		err = ins.uninstallIngress(ctx)
	case common.ComponentCertManager:
		err = ins.uninstallCertManager(ctx)
	default:
		return Result{}, errors.Errorf("unknown component %q", component)
	}
	if err != nil {
		// Teardown problems are reported but never leave the component in a
		// lying status: the reset below is what makes a retry possible.
		ins.record("force-cancel hit an error, resetting state anyway: %v", err)
	}

	ins.store.ForceReset(component)
	ins.clearCompletedStep(component)
	ins.record("%s reset to NotStarted", component)
	return ins.result(component), err
}

// forceCancelDatabase tears down the database, including debris a regular
// uninstall never sees: retained migration pods and their config objects,
// plus claims stuck on dead provisioners.
func (ins *Installer) forceCancelDatabase(ctx context.Context) error {
	ns := ins.cfg.Namespace

	// Retained job debris from failed migrations.
	if err := ins.rnr.KubectlDelete(ctx, ins.conn, "pods,configmaps", "", runner.KubectlDeleteOptions{
		Namespace:      ns,
		Selector:       common.ManagedByLabel + "=" + common.ManagedByValue,
		IgnoreNotFound: true,
	}); err != nil {
		ins.log.Warnf("failed to sweep job debris: %v", err)
	}

	if err := ins.app.Remove(ctx, "deployment", common.DatabaseDeploymentName, ns); err != nil {
		return err
	}
	if err := ins.app.Remove(ctx, "service", common.DatabaseServiceName, ns); err != nil {
		return err
	}

	if err := ins.storage.CleanupStuck(ctx, ns, common.DatabaseClaimName); err != nil {
		return err
	}
	if err := ins.app.Remove(ctx, "pv", common.DatabaseVolumeName, ""); err != nil {
		return err
	}
	return ins.app.Remove(ctx, "secret", common.DatabaseSecretName, ns)
}
