// Package manifest constructs the declarative resource descriptions the
// orchestrator applies to the cluster. Typed Kubernetes objects are built
// with k8s.io/api and serialized to YAML; cert-manager resources, which have
// no typed dependency here, are rendered from templates.
package manifest

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// ResourceDescriptor is an ephemeral description of a single resource,
// constructed per operation and handed to the applier.
type ResourceDescriptor struct {
	Kind             string
	Name             string
	Namespace        string
	RenderedManifest string
}

// Render executes a manifest template with sprig functions available.
func Render(tmplStr string, data interface{}) (string, error) {
	tmpl, err := template.New("manifest").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(tmplStr)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse manifest template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to execute manifest template")
	}
	return buf.String(), nil
}

// toYAML serializes a typed object and wraps it in a ResourceDescriptor.
func toYAML(kind, name, namespace string, obj interface{}) (ResourceDescriptor, error) {
	raw, err := yaml.Marshal(obj)
	if err != nil {
		return ResourceDescriptor{}, errors.Wrapf(err, "failed to marshal %s/%s", kind, name)
	}
	return ResourceDescriptor{
		Kind:             kind,
		Name:             name,
		Namespace:        namespace,
		RenderedManifest: string(raw),
	}, nil
}
