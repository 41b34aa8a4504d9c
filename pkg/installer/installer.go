// Package installer is the orchestrator: it sequences the component
// installs (database, ingress, certificates) as resumable, idempotent
// pipelines, tracks their status through the step state machine, and owns
// cancellation. All cluster interaction goes through the runner and the
// connector, so every decision is based on command output.
package installer

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/cyberedu/rangectl/pkg/applier"
	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/config"
	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/dnscheck"
	"github.com/cyberedu/rangectl/pkg/job"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/runner"
	"github.com/cyberedu/rangectl/pkg/secret"
	"github.com/cyberedu/rangectl/pkg/state"
	"github.com/cyberedu/rangectl/pkg/storage"
)

// Result is what an operation hands back to its caller: a final status plus
// the ordered human-readable log of everything that happened, mirroring
// what was logged during the run.
type Result struct {
	Component string
	Status    state.StepStatus
	Logs      []string
}

// Installer orchestrates component installs against one cluster.
type Installer struct {
	cfg     *config.Config
	conn    connector.Connector
	rnr     runner.Runner
	app     *applier.Applier
	store   *state.Store
	storage *storage.Reconciler
	jobs    *job.Runner
	secrets *secret.ConsistencyChecker
	log     *logger.Logger

	mu       sync.Mutex
	runLines []string
}

func New(cfg *config.Config, conn connector.Connector, log *logger.Logger) *Installer {
	rnr := runner.NewDefaultRunner()
	app := applier.New(rnr, conn, log)
	return &Installer{
		cfg:     cfg,
		conn:    conn,
		rnr:     rnr,
		app:     app,
		store:   state.NewStore(),
		storage: storage.NewReconciler(rnr, conn, app, log, cfg.Node, cfg.Storage.HostPathRoot),
		jobs:    job.NewRunner(rnr, conn, app, log),
		secrets: secret.NewConsistencyChecker(rnr, conn, log),
		log:     log,
	}
}

// Store exposes the step store for status reporting.
func (ins *Installer) Store() *state.Store { return ins.store }

// StorageReconciler exposes the storage layer for cleanup commands.
func (ins *Installer) StorageReconciler() *storage.Reconciler { return ins.storage }

func (ins *Installer) record(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	ins.mu.Lock()
	ins.runLines = append(ins.runLines, line)
	ins.mu.Unlock()
	ins.log.Infof("%s", line)
}

func (ins *Installer) beginRun() {
	ins.mu.Lock()
	ins.runLines = nil
	ins.mu.Unlock()
}

func (ins *Installer) result(component string) Result {
	ins.mu.Lock()
	lines := append([]string(nil), ins.runLines...)
	ins.mu.Unlock()
	return Result{
		Component: component,
		Status:    ins.store.Get(component).Status,
		Logs:      lines,
	}
}

// Install runs the pipeline for the named component. An already-installed
// component short-circuits successfully without touching the cluster.
func (ins *Installer) Install(ctx context.Context, component string) (Result, error) {
	ins.beginRun()

	if ins.store.Get(component).Status == state.StatusInstalled {
		ins.record("%s is already installed, nothing to do", component)
		return ins.result(component), nil
	}

	var err error
	switch component {
	case common.ComponentDatabase:
		err = ins.installDatabase(ctx)
	case common.ComponentIngress:
		err = ins.installIngress(ctx)
	case common.ComponentCertManager:
		err = ins.installCertManager(ctx)
	default:
		return Result{}, errors.Errorf("unknown component %q", component)
	}

	if err != nil {
		err = classify(err)
		if ferr := ins.store.Fail(component, err); ferr != nil {
			ins.log.Errorf("could not record failure for %s: %v", component, ferr)
		}
		ins.record("%s install failed: %v", component, err)
		return ins.result(component), err
	}
	return ins.result(component), nil
}

// Uninstall tears the component down in reverse install order, tolerating
// resources that are already gone.
func (ins *Installer) Uninstall(ctx context.Context, component string) (Result, error) {
	ins.beginRun()

	step := ins.store.Get(component)
	if step.Status == state.StatusNotStarted {
		ins.record("%s is not installed, nothing to remove", component)
		return ins.result(component), nil
	}
	if err := ins.store.Transition(component, state.StatusDeleting); err != nil {
		return ins.result(component), err
	}

	var err error
	switch component {
	case common.ComponentDatabase:
		err = ins.uninstallDatabase(ctx)
	case common.ComponentIngress:
		err = ins.uninstallIngress(ctx)
	case common.ComponentCertManager:
		err = ins.uninstallCertManager(ctx)
	default:
		return Result{}, errors.Errorf("unknown component %q", component)
	}
	if err != nil {
		err = classify(err)
		if ferr := ins.store.Fail(component, err); ferr != nil {
			ins.log.Errorf("could not record failure for %s: %v", component, ferr)
		}
		return ins.result(component), err
	}

	if err := ins.store.Transition(component, state.StatusNotStarted); err != nil {
		return ins.result(component), err
	}
	ins.clearCompletedStep(component)
	ins.record("%s removed", component)
	return ins.result(component), nil
}

// preflight verifies the external tools exist and kubectl meets the version
// floor. It runs before any status transition so a missing tool never
// poisons the state machine.
func (ins *Installer) preflight(ctx context.Context, tools ...string) error {
	for _, tool := range tools {
		if _, err := ins.conn.LookPath(ctx, tool); err != nil {
			return &ToolNotFoundError{Tool: tool}
		}
	}

	current, err := ins.rnr.KubectlVersion(ctx, ins.conn)
	if err != nil {
		return classify(errors.Wrap(err, "failed to determine kubectl version"))
	}
	floor, err := semver.NewVersion(ins.cfg.Tools.MinKubectlVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid minimum kubectl version %q", ins.cfg.Tools.MinKubectlVersion)
	}
	if current.LessThan(floor) {
		return &VersionTooOldError{Tool: common.ToolKubectl, Found: current.String(), MinWant: floor.String()}
	}
	return nil
}

func (ins *Installer) stepKeyFor(component string) string {
	switch component {
	case common.ComponentDatabase:
		return common.StepDatabaseSetup
	case common.ComponentIngress:
		return common.StepIngressSetup
	case common.ComponentCertManager:
		return common.StepCertSetup
	}
	return ""
}

func (ins *Installer) markCompletedStep(component string) {
	if key := ins.stepKeyFor(component); key != "" {
		ins.store.MarkCompleted(key)
	}
}

func (ins *Installer) clearCompletedStep(component string) {
	if key := ins.stepKeyFor(component); key != "" {
		ins.store.ClearCompleted(key)
	}
}

// CheckDnsPropagation runs one propagation check for the configured domain.
func (ins *Installer) CheckDnsPropagation(ctx context.Context) (dnscheck.Status, dnscheck.Result, error) {
	m := dnscheck.NewMonitor(ins.rnr, ins.conn, ins.log, ins.cfg.Domain, ins.cfg.IngressIP)
	res, err := m.Check(ctx)
	return m.Classify(res, err), res, err
}
