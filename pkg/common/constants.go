// Package common holds shared constants for the installation orchestrator.
package common

import "time"

// Components the orchestrator knows how to install.
const (
	ComponentDatabase    = "database"
	ComponentIngress     = "ingress"
	ComponentCertManager = "certmanager"
)

// Step keys recorded in the completed-steps set. The dashboard gates its
// wizard pages on membership in this set.
const (
	StepDatabaseSetup = "database-setup"
	StepIngressSetup  = "ingress-setup"
	StepCertSetup     = "cert-setup"
)

// Tools invoked through the connector.
const (
	ToolKubectl  = "kubectl"
	ToolHelm     = "helm"
	ToolDig      = "dig"
	ToolNslookup = "nslookup"
)

// Default namespace the platform backend is installed into.
const DefaultNamespace = "cyberange"

// Resource names for the database component.
const (
	DatabaseSecretName     = "cyberange-db-credentials"
	DatabaseDeploymentName = "cyberange-postgres"
	DatabaseServiceName    = "cyberange-postgres"
	DatabaseClaimName      = "cyberange-postgres-data"
	DatabaseVolumeName     = "cyberange-postgres-pv"
	DatabasePort           = 5432
)

// Secret data keys. DatabaseURLKey holds the composite connection string
// derived from the canonical password kept under PostgresPasswordKey.
const (
	PostgresPasswordKey = "postgres-password"
	DatabaseURLKey      = "database-url"
)

// MigrationSuccessMarker is printed by the schema migration script as its
// last line. Pod phase and this marker are combined as two independent
// success signals: intermediate shell wrappers can mask the script's true
// exit status, so the phase alone is not trusted for failure.
const MigrationSuccessMarker = "MIGRATION_COMPLETE"

// Labels attached to installer-owned and platform-owned resources.
const (
	ManagedByLabel     = "app.kubernetes.io/managed-by"
	ManagedByValue     = "rangectl"
	InstanceLabel      = "rangectl.io/instance"
	ScratchClaimPrefix = "rangectl-probe-"
	HelperPodPrefix    = "rangectl-hostpath-init-"
	JobPodPrefix       = "rangectl-job-"
)

// Timeouts and polling cadences.
const (
	DefaultWaitTimeout      = 300 * time.Second
	DefaultPollInterval     = 5 * time.Second
	ProbeBindTimeout        = 45 * time.Second
	HelperPodTimeout        = 60 * time.Second
	JobActiveDeadline       = 300
	DefaultGeneratedPwLen   = 16
	DNSWarningThreshold     = 10
	DefaultMonitorScanLimit = 5
)
