package manifest

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/cyberedu/rangectl/pkg/common"
)

func managedLabels(extra map[string]string) map[string]string {
	labels := map[string]string{common.ManagedByLabel: common.ManagedByValue}
	for k, v := range extra {
		labels[k] = v
	}
	return labels
}

func int32Ptr(v int32) *int32 { return &v }
func int64Ptr(v int64) *int64 { return &v }

// Namespace builds the platform namespace. Applying it is the idempotent
// equivalent of `kubectl create namespace`.
func Namespace(name string) (ResourceDescriptor, error) {
	ns := corev1.Namespace{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: managedLabels(nil)},
	}
	return toYAML("Namespace", name, "", &ns)
}

// Secret builds an Opaque secret. Values are raw; serialization base64
// encodes them as the Secret data contract requires.
func Secret(name, namespace string, data map[string][]byte) (ResourceDescriptor, error) {
	sec := corev1.Secret{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: managedLabels(nil)},
		Type:       corev1.SecretTypeOpaque,
		Data:       data,
	}
	return toYAML("Secret", name, namespace, &sec)
}

// ConfigMap builds a config object carrying script and payload files.
func ConfigMap(name, namespace string, data map[string]string) (ResourceDescriptor, error) {
	cm := corev1.ConfigMap{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: managedLabels(nil)},
		Data:       data,
	}
	return toYAML("ConfigMap", name, namespace, &cm)
}

// PersistentVolumeClaim builds a claim. className semantics follow the
// Kubernetes API: nil requests the cluster default provisioner, a pointer to
// the empty string disables dynamic provisioning (static hostPath binding).
func PersistentVolumeClaim(name, namespace string, className *string, size string) (ResourceDescriptor, error) {
	pvc := corev1.PersistentVolumeClaim{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: managedLabels(nil)},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			StorageClassName: className,
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: resource.MustParse(size),
				},
			},
		},
	}
	return toYAML("PersistentVolumeClaim", name, namespace, &pvc)
}

// HostPathVolume builds a PersistentVolume backed by a directory on a single
// node, pre-bound to the given claim so no other claim can steal it.
func HostPathVolume(name, path, size, claimName, claimNamespace string) (ResourceDescriptor, error) {
	hostPathType := corev1.HostPathDirectoryOrCreate
	className := ""
	pv := corev1.PersistentVolume{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolume"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: managedLabels(nil)},
		Spec: corev1.PersistentVolumeSpec{
			StorageClassName: className,
			Capacity: corev1.ResourceList{
				corev1.ResourceStorage: resource.MustParse(size),
			},
			AccessModes:                   []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			PersistentVolumeReclaimPolicy: corev1.PersistentVolumeReclaimRetain,
			ClaimRef: &corev1.ObjectReference{
				Kind:      "PersistentVolumeClaim",
				Name:      claimName,
				Namespace: claimNamespace,
			},
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				HostPath: &corev1.HostPathVolumeSource{Path: path, Type: &hostPathType},
			},
		},
	}
	return toYAML("PersistentVolume", name, "", &pv)
}

// SecretEnvVar maps one environment variable onto a secret key. Unlike
// envFrom, this works for secret keys whose names are not valid environment
// variable names.
type SecretEnvVar struct {
	Name       string
	SecretName string
	Key        string
}

// JobPodOptions parameterizes the ephemeral execution pod.
type JobPodOptions struct {
	Name                  string
	Namespace             string
	Image                 string
	ConfigMapName         string
	ScriptKey             string
	EnvFromSecret         string
	Env                   map[string]string
	SecretEnv             []SecretEnvVar
	ActiveDeadlineSeconds int64
}

// JobPod builds the deadline-bounded, single-shot execution pod used for
// schema migrations. The config object is mounted read-only under /scripts
// and the pod never restarts, so one run yields exactly one verdict.
func JobPod(opts JobPodOptions) (ResourceDescriptor, error) {
	var env []corev1.EnvVar
	for k, v := range opts.Env {
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}
	for _, sv := range opts.SecretEnv {
		env = append(env, corev1.EnvVar{
			Name: sv.Name,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: sv.SecretName},
					Key:                  sv.Key,
				},
			},
		})
	}

	container := corev1.Container{
		Name:    "runner",
		Image:   opts.Image,
		Command: []string{"/bin/sh", "/scripts/" + opts.ScriptKey},
		Env:     env,
		VolumeMounts: []corev1.VolumeMount{
			{Name: "scripts", MountPath: "/scripts", ReadOnly: true},
		},
	}
	if opts.EnvFromSecret != "" {
		container.EnvFrom = []corev1.EnvFromSource{
			{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: opts.EnvFromSecret}}},
		}
	}

	deadline := opts.ActiveDeadlineSeconds
	if deadline <= 0 {
		deadline = common.JobActiveDeadline
	}

	pod := corev1.Pod{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{Name: opts.Name, Namespace: opts.Namespace, Labels: managedLabels(nil)},
		Spec: corev1.PodSpec{
			RestartPolicy:         corev1.RestartPolicyNever,
			ActiveDeadlineSeconds: int64Ptr(deadline),
			Containers:            []corev1.Container{container},
			Volumes: []corev1.Volume{
				{
					Name: "scripts",
					VolumeSource: corev1.VolumeSource{
						ConfigMap: &corev1.ConfigMapVolumeSource{
							LocalObjectReference: corev1.LocalObjectReference{Name: opts.ConfigMapName},
						},
					},
				},
			},
		},
	}
	return toYAML("Pod", opts.Name, opts.Namespace, &pod)
}

// HelperPod builds the short-lived pod that bootstraps a hostPath directory
// on a pinned node before the database workload can mount it.
func HelperPod(name, namespace, node, hostPath, shellCommand string) (ResourceDescriptor, error) {
	hostPathType := corev1.HostPathDirectoryOrCreate
	pod := corev1.Pod{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: managedLabels(nil)},
		Spec: corev1.PodSpec{
			NodeName:              node,
			RestartPolicy:         corev1.RestartPolicyNever,
			ActiveDeadlineSeconds: int64Ptr(60),
			Containers: []corev1.Container{
				{
					Name:    "init",
					Image:   "busybox:1.36",
					Command: []string{"/bin/sh", "-c", shellCommand},
					VolumeMounts: []corev1.VolumeMount{
						{Name: "target", MountPath: "/target"},
					},
				},
			},
			Volumes: []corev1.Volume{
				{
					Name: "target",
					VolumeSource: corev1.VolumeSource{
						HostPath: &corev1.HostPathVolumeSource{Path: hostPath, Type: &hostPathType},
					},
				},
			},
		},
	}
	return toYAML("Pod", name, namespace, &pod)
}

// PostgresOptions parameterizes the database workload.
type PostgresOptions struct {
	Name       string
	Namespace  string
	Image      string
	SecretName string
	ClaimName  string
	Database   string
	User       string
	Node       string
}

// PostgresDeployment builds the long-running database workload. Credentials
// come from the canonical secret, never inline.
func PostgresDeployment(opts PostgresOptions) (ResourceDescriptor, error) {
	labels := managedLabels(map[string]string{"app": opts.Name})

	dep := appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{Name: opts.Name, Namespace: opts.Namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(1),
			Strategy: appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType},
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": opts.Name}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					NodeName: opts.Node,
					Containers: []corev1.Container{
						{
							Name:  "postgres",
							Image: opts.Image,
							Ports: []corev1.ContainerPort{{ContainerPort: common.DatabasePort}},
							Env: []corev1.EnvVar{
								{Name: "POSTGRES_DB", Value: opts.Database},
								{Name: "POSTGRES_USER", Value: opts.User},
								{
									Name: "POSTGRES_PASSWORD",
									ValueFrom: &corev1.EnvVarSource{
										SecretKeyRef: &corev1.SecretKeySelector{
											LocalObjectReference: corev1.LocalObjectReference{Name: opts.SecretName},
											Key:                  common.PostgresPasswordKey,
										},
									},
								},
								{Name: "PGDATA", Value: "/var/lib/postgresql/data/pgdata"},
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "data", MountPath: "/var/lib/postgresql/data"},
							},
							ReadinessProbe: &corev1.Probe{
								ProbeHandler: corev1.ProbeHandler{
									Exec: &corev1.ExecAction{Command: []string{"pg_isready", "-U", opts.User}},
								},
								InitialDelaySeconds: 5,
								PeriodSeconds:       5,
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "data",
							VolumeSource: corev1.VolumeSource{
								PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: opts.ClaimName},
							},
						},
					},
				},
			},
		},
	}
	return toYAML("Deployment", opts.Name, opts.Namespace, &dep)
}

// PostgresService builds the ClusterIP service in front of the database.
func PostgresService(name, namespace, appLabel string) (ResourceDescriptor, error) {
	svc := corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: managedLabels(nil)},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": appLabel},
			Ports: []corev1.ServicePort{
				{Port: common.DatabasePort, TargetPort: intstr.FromInt(common.DatabasePort)},
			},
		},
	}
	return toYAML("Service", name, namespace, &svc)
}
