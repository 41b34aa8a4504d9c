package installer

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/cyberedu/rangectl/pkg/applier"
	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/job"
	"github.com/cyberedu/rangectl/pkg/manifest"
	"github.com/cyberedu/rangectl/pkg/runner"
	"github.com/cyberedu/rangectl/pkg/secret"
	"github.com/cyberedu/rangectl/pkg/state"
)

// platformSchema is the backend schema applied by the migration job. Every
// statement is guarded so re-running the migration against an initialized
// database is a no-op.
const platformSchema = `
CREATE TABLE IF NOT EXISTS users (
    id          SERIAL PRIMARY KEY,
    username    TEXT NOT NULL UNIQUE,
    email       TEXT NOT NULL UNIQUE,
    role        TEXT NOT NULL DEFAULT 'student',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS challenges (
    id          SERIAL PRIMARY KEY,
    slug        TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    category    TEXT NOT NULL,
    difficulty  INT  NOT NULL DEFAULT 1,
    flag_hash   TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS instances (
    id           SERIAL PRIMARY KEY,
    user_id      INT  NOT NULL REFERENCES users(id),
    challenge_id INT  NOT NULL REFERENCES challenges(id),
    status       TEXT NOT NULL DEFAULT 'Pending',
    retry_count  INT  NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS submissions (
    id           SERIAL PRIMARY KEY,
    user_id      INT  NOT NULL REFERENCES users(id),
    challenge_id INT  NOT NULL REFERENCES challenges(id),
    correct      BOOLEAN NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_instances_status ON instances (status);
`

// migrationScript runs inside the job pod with PGPASSWORD injected from
// the credentials secret. The marker on the last line is the second success
// signal next to the pod phase.
const migrationScript = `#!/bin/sh
set -e
until pg_isready -h "$DB_HOST" -U "$DB_USER" >/dev/null 2>&1; do
  echo "waiting for database..."
  sleep 2
done
psql -h "$DB_HOST" -U "$DB_USER" -d "$DB_NAME" -v ON_ERROR_STOP=1 -f /scripts/schema.sql
echo "` + common.MigrationSuccessMarker + `"
`

// installDatabase provisions PostgreSQL inside the cluster: credentials,
// storage, workload, then schema migration. Every stage is idempotent, so a
// retry after a partial failure converges instead of erroring on the
// resources that already exist.
func (ins *Installer) installDatabase(ctx context.Context) error {
	if err := ins.preflight(ctx, ins.cfg.Tools.Kubectl); err != nil {
		return err
	}
	if err := ins.store.Transition(common.ComponentDatabase, state.StatusInstalling); err != nil {
		return err
	}
	ns := ins.cfg.Namespace

	nsDesc, err := manifest.Namespace(ns)
	if err != nil {
		return err
	}
	if _, err := ins.app.Apply(ctx, nsDesc); err != nil {
		return errors.Wrap(err, "failed to ensure namespace")
	}

	if err := ins.ensureCredentials(ctx); err != nil {
		return err
	}

	if ins.cfg.Database.UseExisting {
		// Nothing to provision: the database already runs outside our
		// control. Credentials were just verified; only the schema needs
		// driving to its target state.
		ins.record("using existing database at %s", ins.cfg.Database.Host)
		if err := ins.runMigration(ctx); err != nil {
			return err
		}
		if err := ins.store.Transition(common.ComponentDatabase, state.StatusInstalled); err != nil {
			return err
		}
		ins.markCompletedStep(common.ComponentDatabase)
		ins.record("database installed")
		return nil
	}

	if err := ins.ensureStorage(ctx); err != nil {
		return err
	}

	dep, err := manifest.PostgresDeployment(manifest.PostgresOptions{
		Name:       common.DatabaseDeploymentName,
		Namespace:  ns,
		Image:      ins.cfg.Database.Image,
		SecretName: common.DatabaseSecretName,
		ClaimName:  common.DatabaseClaimName,
		Database:   ins.cfg.Database.Name,
		User:       ins.cfg.Database.User,
		Node:       ins.cfg.Node,
	})
	if err != nil {
		return err
	}
	if _, err := ins.app.Apply(ctx, dep); err != nil {
		return errors.Wrap(err, "failed to apply database workload")
	}
	svc, err := manifest.PostgresService(common.DatabaseServiceName, ns, common.DatabaseDeploymentName)
	if err != nil {
		return err
	}
	if _, err := ins.app.Apply(ctx, svc); err != nil {
		return errors.Wrap(err, "failed to apply database service")
	}
	ins.record("database workload and service applied")

	if err := ins.app.WaitFor(ctx, applier.WaitOptions{
		Kind:      "pods",
		Selector:  "app=" + common.DatabaseDeploymentName,
		Namespace: ns,
		Predicate: applier.PodReady,
	}); err != nil {
		return errors.Wrap(err, "database did not become ready")
	}
	ins.record("database is ready")

	if err := ins.runMigration(ctx); err != nil {
		return err
	}

	if err := ins.store.Transition(common.ComponentDatabase, state.StatusInstalled); err != nil {
		return err
	}
	ins.markCompletedStep(common.ComponentDatabase)
	ins.record("database installed")
	return nil
}

// ensureCredentials creates the credentials secret on first install and
// verifies raw-password/URL consistency on every later run.
func (ins *Installer) ensureCredentials(ctx context.Context) error {
	ns := ins.cfg.Namespace
	out, err := ins.rnr.KubectlGet(ctx, ins.conn, "secret", common.DatabaseSecretName, runner.KubectlGetOptions{
		Namespace:      ns,
		OutputFormat:   "json",
		IgnoreNotFound: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to look up credentials secret")
	}

	if strings.TrimSpace(out) != "" {
		report, err := ins.secrets.Verify(ctx, ns, common.DatabaseSecretName)
		if err != nil {
			return err
		}
		if report.Repaired {
			ins.record("credentials secret repaired: connection URL had drifted")
		} else {
			ins.record("credentials secret verified")
		}
		return nil
	}

	password := ins.cfg.Database.Password
	if password == "" {
		password, err = secret.GeneratePassword(common.DefaultGeneratedPwLen)
		if err != nil {
			return err
		}
	}
	url := secret.DatabaseURL(ins.cfg.Database.User, password, ins.databaseHost(), common.DatabasePort, ins.cfg.Database.Name)
	desc, err := manifest.Secret(common.DatabaseSecretName, ns, map[string][]byte{
		common.PostgresPasswordKey: []byte(password),
		common.DatabaseURLKey:      []byte(url),
	})
	if err != nil {
		return err
	}
	if _, err := ins.app.Apply(ctx, desc); err != nil {
		return errors.Wrap(err, "failed to create credentials secret")
	}
	ins.record("credentials secret created")
	return nil
}

// ensureStorage decides between dynamic provisioning and the host-local
// fallback, then applies the claim (and pre-bound volume when falling back).
func (ins *Installer) ensureStorage(ctx context.Context) error {
	ns := ins.cfg.Namespace
	classes, err := ins.storage.DiscoverStorageClasses(ctx)
	if err != nil {
		return err
	}
	decision, err := ins.storage.Decide(ctx, ns, classes)
	if err != nil {
		return err
	}

	var className *string
	if decision.FallbackToHostPath {
		pv, err := manifest.HostPathVolume(common.DatabaseVolumeName, decision.HostPath, ins.cfg.Database.StorageSize, common.DatabaseClaimName, ns)
		if err != nil {
			return err
		}
		if _, err := ins.app.Apply(ctx, pv); err != nil {
			return errors.Wrap(err, "failed to apply host-local volume")
		}
		empty := ""
		className = &empty
		ins.record("using host-local storage at %s", decision.HostPath)
	} else {
		className = &decision.StorageClassName
		ins.record("using storage class %s", decision.StorageClassName)
	}

	pvc, err := manifest.PersistentVolumeClaim(common.DatabaseClaimName, ns, className, ins.cfg.Database.StorageSize)
	if err != nil {
		return err
	}
	if _, err := ins.app.Apply(ctx, pvc); err != nil {
		return errors.Wrap(err, "failed to apply database claim")
	}
	return nil
}

// databaseHost is where the migration and the connection URL point: the
// in-cluster service, or the operator-provided endpoint when reusing an
// existing database.
func (ins *Installer) databaseHost() string {
	if ins.cfg.Database.UseExisting {
		return ins.cfg.Database.Host
	}
	return common.DatabaseServiceName
}

// runMigration executes the schema migration as a one-shot in-cluster job
// and tears its resources down only after a verified success.
func (ins *Installer) runMigration(ctx context.Context) error {
	j, err := ins.jobs.Submit(ctx, job.SubmitOptions{
		Namespace: ins.cfg.Namespace,
		Image:     ins.cfg.Database.Image,
		Script:    migrationScript,
		Payload:   map[string]string{"schema.sql": platformSchema},
		SecretEnv: []manifest.SecretEnvVar{
			{Name: "PGPASSWORD", SecretName: common.DatabaseSecretName, Key: common.PostgresPasswordKey},
		},
		Env: map[string]string{
			"DB_HOST": ins.databaseHost(),
			"DB_USER": ins.cfg.Database.User,
			"DB_NAME": ins.cfg.Database.Name,
		},
	})
	if err != nil {
		return err
	}
	ins.record("schema migration submitted as %s", j.PodName)

	if err := ins.jobs.Await(ctx, j, common.DefaultWaitTimeout); err != nil {
		return err
	}
	if err := ins.jobs.Teardown(ctx, j); err != nil {
		return errors.Wrap(err, "migration succeeded but cleanup failed")
	}
	ins.record("schema migration verified")
	return nil
}

// uninstallDatabase removes the database resources in reverse install
// order. Absent resources are tolerated so a partially-installed component
// can still be torn down.
func (ins *Installer) uninstallDatabase(ctx context.Context) error {
	ns := ins.cfg.Namespace
	for _, ref := range []struct{ kind, name, namespace string }{
		{"deployment", common.DatabaseDeploymentName, ns},
		{"service", common.DatabaseServiceName, ns},
		{"pvc", common.DatabaseClaimName, ns},
		{"pv", common.DatabaseVolumeName, ""},
		{"secret", common.DatabaseSecretName, ns},
	} {
		if err := ins.app.Remove(ctx, ref.kind, ref.name, ref.namespace); err != nil {
			return errors.Wrapf(err, "failed to remove %s/%s", ref.kind, ref.name)
		}
		ins.record("removed %s/%s", ref.kind, ref.name)
	}
	return nil
}
