package runner

import "time"

// KubectlApplyOptions configures `kubectl apply`. The manifest is always
// streamed over stdin; apply has upsert semantics, so reapplying an
// unchanged manifest is a no-op and applying to an existing named resource
// updates it.
type KubectlApplyOptions struct {
	FileContent string
	Namespace   string
	Validate    bool
	Timeout     time.Duration
}

// KubectlGetOptions configures `kubectl get`.
type KubectlGetOptions struct {
	Namespace      string
	AllNamespaces  bool
	OutputFormat   string
	Selector       string
	FieldSelector  string
	IgnoreNotFound bool
}

// KubectlDeleteOptions configures `kubectl delete`.
type KubectlDeleteOptions struct {
	Namespace      string
	Selector       string
	Force          bool
	GracePeriod    *int
	Wait           bool
	Timeout        time.Duration
	IgnoreNotFound bool
}

// KubectlDescribeOptions configures `kubectl describe`.
type KubectlDescribeOptions struct {
	Namespace string
}

// KubectlLogOptions configures `kubectl logs`.
type KubectlLogOptions struct {
	Namespace string
	Container string
	TailLines *int
}

// KubectlPatchOptions configures `kubectl patch`.
type KubectlPatchOptions struct {
	Namespace string
	// Type is the patch strategy: "merge" (default), "json" or "strategic".
	Type  string
	Patch string
}

// HelmInstallOptions configures `helm upgrade --install`.
type HelmInstallOptions struct {
	Namespace       string
	CreateNamespace bool
	Version         string
	SetValues       []string
	Wait            bool
	Timeout         time.Duration
}

// HelmUninstallOptions configures `helm uninstall`.
type HelmUninstallOptions struct {
	Namespace      string
	Wait           bool
	IgnoreNotFound bool
}

// HelmStatusOptions configures `helm status`.
type HelmStatusOptions struct {
	Namespace string
}

// DNSLookupOptions configures dig/nslookup invocations.
type DNSLookupOptions struct {
	// Server queries a specific nameserver instead of the system resolver.
	Server  string
	Timeout time.Duration
}
