// Package job runs one-shot scripts inside the cluster as deadline-bounded
// pods and verifies their outcome. The primary consumer is the database
// schema migration, where pod phase reporting is not fully trusted: a
// success marker in the logs also counts as verified.
package job

import (
	"context"
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

// ErrScriptExecution marks a job whose script ran but did not verifiably
// succeed. The pod and config object are retained for inspection.
var ErrScriptExecution = errors.New("in-cluster script did not verifiably succeed")

const scriptKey = "run.sh"

// Outcome classifies one poll of a submitted job.
type Outcome int

const (
	// OutcomeRunning means the pod has not reached a terminal phase yet.
	OutcomeRunning Outcome = iota
	// OutcomeVerified means the run demonstrably succeeded, by phase or by
	// the success marker in its logs.
	OutcomeVerified
	// OutcomeFailed means the pod terminated without any success signal.
	OutcomeFailed
)

// Job tracks one submitted script run.
type Job struct {
	ID            string
	PodName       string
	ConfigMapName string
	Namespace     string
	// VerifiedSuccess is set by Poll once the run demonstrably succeeded.
	// Teardown refuses to act while it is unset.
	VerifiedSuccess bool
}

// SubmitOptions parameterizes a script run.
type SubmitOptions struct {
	Namespace string
	Image     string
	// Script is the shell script body executed inside the pod.
	Script string
	// Payload files are mounted alongside the script under /scripts.
	Payload map[string]string
	// EnvFromSecret injects a secret's keys as environment variables.
	EnvFromSecret string
	Env           map[string]string
	// SecretEnv maps individual variables onto secret keys; required when
	// the key name is not a valid environment variable name.
	SecretEnv             []manifest.SecretEnvVar
	ActiveDeadlineSeconds int64
}

// Runner submits, polls and tears down in-cluster script runs.
type Runner struct {
	rnr  runner.Runner
	conn connector.Connector
	app  *applier.Applier
	log  *logger.Logger

	PollInterval time.Duration
}

func NewRunner(rnr runner.Runner, conn connector.Connector, app *applier.Applier, log *logger.Logger) *Runner {
	return &Runner{rnr: rnr, conn: conn, app: app, log: log, PollInterval: common.DefaultPollInterval}
}

// Submit creates the script config object and the execution pod. Every
// submission gets a fresh identifier so retries never collide with retained
// debris from earlier failed runs.
func (r *Runner) Submit(ctx context.Context, opts SubmitOptions) (*Job, error) {
	id := uuid.NewString()[:8]
	job := &Job{
		ID:            id,
		PodName:       common.JobPodPrefix + id,
		ConfigMapName: common.JobPodPrefix + id + "-scripts",
		Namespace:     opts.Namespace,
	}

	data := map[string]string{scriptKey: opts.Script}
	for k, v := range opts.Payload {
		data[k] = v
	}
	cm, err := manifest.ConfigMap(job.ConfigMapName, opts.Namespace, data)
	if err != nil {
		return nil, err
	}
	if _, err := r.app.Apply(ctx, cm); err != nil {
		return nil, errors.Wrap(err, "failed to create script config object")
	}

	pod, err := manifest.JobPod(manifest.JobPodOptions{
		Name:                  job.PodName,
		Namespace:             opts.Namespace,
		Image:                 opts.Image,
		ConfigMapName:         job.ConfigMapName,
		ScriptKey:             scriptKey,
		EnvFromSecret:         opts.EnvFromSecret,
		Env:                   opts.Env,
		SecretEnv:             opts.SecretEnv,
		ActiveDeadlineSeconds: opts.ActiveDeadlineSeconds,
	})
	if err != nil {
		return nil, err
	}
	if _, err := r.app.Apply(ctx, pod); err != nil {
		return nil, errors.Wrap(err, "failed to create job pod")
	}

	r.log.Infof("submitted job %s in namespace %s", job.PodName, opts.Namespace)
	return job, nil
}

// Poll inspects the job pod once and classifies it. "Completed" is accepted
// as a legacy alias of the canonical "Succeeded" phase. A terminal pod whose
// phase is not successful still counts as verified when the success marker
// appears in its recent logs, because some script images exit through signal
// handlers that distort the reported phase.
func (r *Runner) Poll(ctx context.Context, job *Job) (Outcome, error) {
	out, err := r.rnr.KubectlGet(ctx, r.conn, "pod", job.PodName, runner.KubectlGetOptions{
		Namespace:    job.Namespace,
		OutputFormat: "json",
	})
	if err != nil {
		return OutcomeFailed, errors.Wrapf(err, "failed to inspect job pod %s", job.PodName)
	}

	phase := gjson.Get(out, "status.phase").String()
	switch phase {
	case "Succeeded", "Completed":
		job.VerifiedSuccess = true
		return OutcomeVerified, nil
	case "Failed", "Unknown":
		if r.logsShowSuccess(ctx, job) {
			r.log.Warnf("job %s reported phase %s but its logs carry the success marker", job.PodName, phase)
			job.VerifiedSuccess = true
			return OutcomeVerified, nil
		}
		return OutcomeFailed, nil
	default:
		return OutcomeRunning, nil
	}
}

func (r *Runner) logsShowSuccess(ctx context.Context, job *Job) bool {
	tail := 20
	logs, err := r.rnr.KubectlLogs(ctx, r.conn, job.PodName, runner.KubectlLogOptions{
		Namespace: job.Namespace,
		TailLines: &tail,
	})
	if err != nil {
		return false
	}
	return strings.Contains(logs, common.MigrationSuccessMarker)
}

// Await polls the job until it reaches a verdict or the timeout elapses. On
// a failed verdict the pod and config object stay behind for inspection and
// the returned error wraps ErrScriptExecution.
func (r *Runner) Await(ctx context.Context, job *Job, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		outcome, err := r.Poll(ctx, job)
		if err != nil {
			return err
		}
		switch outcome {
		case OutcomeVerified:
			return nil
		case OutcomeFailed:
			r.log.Errorf("job %s failed; retaining pod and config object %s for inspection", job.PodName, job.ConfigMapName)
			return errors.Wrapf(ErrScriptExecution, "job %s", job.PodName)
		}

		if time.Now().After(deadline) {
			r.log.Errorf("job %s did not finish within %s; resources retained", job.PodName, timeout)
			return errors.Wrapf(ErrScriptExecution, "job %s timed out after %s", job.PodName, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.PollInterval):
		}
	}
}

// Teardown removes the job's resources after a verified success. Unverified
// runs keep their resources so operators can read the logs and the exact
// script that ran; calling Teardown on one is refused.
func (r *Runner) Teardown(ctx context.Context, job *Job) error {
	if !job.VerifiedSuccess {
		r.log.Warnf("refusing to tear down unverified job %s; pod %s and config object %s retained",
			job.ID, job.PodName, job.ConfigMapName)
		return errors.Errorf("job %s is not verified successful", job.ID)
	}
	if err := r.app.Remove(ctx, "pod", job.PodName, job.Namespace); err != nil {
		return err
	}
	return r.app.Remove(ctx, "configmap", job.ConfigMapName, job.Namespace)
}
