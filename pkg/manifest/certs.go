package manifest

// cert-manager resources carry no typed client dependency; they are rendered
// from templates instead.

const issuerTemplate = `apiVersion: cert-manager.io/v1
kind: ClusterIssuer
metadata:
  name: {{ .Name }}
spec:
  acme:
    email: {{ .Email }}
    server: {{ .Server }}
    privateKeySecretRef:
      name: {{ .Name }}-account-key
    solvers:
      - http01:
          ingress:
            class: nginx
`

const certificateTemplate = `apiVersion: cert-manager.io/v1
kind: Certificate
metadata:
  name: {{ .Name }}
  namespace: {{ .Namespace }}
spec:
  secretName: {{ .Name }}-tls
  issuerRef:
    name: {{ .IssuerName }}
    kind: ClusterIssuer
  dnsNames:
{{- range .DNSNames }}
    - {{ . | quote }}
{{- end }}
`

const (
	acmeProductionServer = "https://acme-v02.api.letsencrypt.org/directory"
	acmeStagingServer    = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// ClusterIssuer renders the ACME issuer for the platform domain.
func ClusterIssuer(name, email string, staging bool) (ResourceDescriptor, error) {
	server := acmeProductionServer
	if staging {
		server = acmeStagingServer
	}
	rendered, err := Render(issuerTemplate, map[string]interface{}{
		"Name":   name,
		"Email":  email,
		"Server": server,
	})
	if err != nil {
		return ResourceDescriptor{}, err
	}
	return ResourceDescriptor{Kind: "ClusterIssuer", Name: name, RenderedManifest: rendered}, nil
}

// Certificate renders the wildcard certificate request. Issuance readiness
// is gated on DNS propagation by the caller.
func Certificate(name, namespace, issuerName string, dnsNames []string) (ResourceDescriptor, error) {
	rendered, err := Render(certificateTemplate, map[string]interface{}{
		"Name":       name,
		"Namespace":  namespace,
		"IssuerName": issuerName,
		"DNSNames":   dnsNames,
	})
	if err != nil {
		return ResourceDescriptor{}, err
	}
	return ResourceDescriptor{Kind: "Certificate", Name: name, Namespace: namespace, RenderedManifest: rendered}, nil
}
