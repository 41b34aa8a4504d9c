package installer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/manifest"
	"github.com/cyberedu/rangectl/pkg/runner"
	"github.com/cyberedu/rangectl/pkg/state"
)

const (
	ingressReleaseName = "ingress-nginx"
	ingressNamespace   = "ingress-nginx"
	certReleaseName    = "cert-manager"
	certNamespace      = "cert-manager"
	clusterIssuerName  = "cyberange-letsencrypt"
	certificateName    = "cyberange-wildcard-tls"
)

// installIngress installs the ingress controller as a helm release.
// `helm upgrade --install` gives the whole step upsert semantics, so a
// retry after a partial failure converges.
func (ins *Installer) installIngress(ctx context.Context) error {
	if err := ins.preflight(ctx, ins.cfg.Tools.Kubectl, ins.cfg.Tools.Helm); err != nil {
		return err
	}
	if err := ins.store.Transition(common.ComponentIngress, state.StatusInstalling); err != nil {
		return err
	}

	if err := ins.rnr.HelmRepoAdd(ctx, ins.conn, ingressReleaseName, ins.cfg.Ingress.ChartRepo); err != nil {
		return errors.Wrap(err, "failed to add ingress chart repository")
	}
	if err := ins.rnr.HelmRepoUpdate(ctx, ins.conn); err != nil {
		return errors.Wrap(err, "failed to update chart repositories")
	}

	set := []string{"controller.ingressClassResource.default=true"}
	if ins.cfg.IngressIP != "" {
		set = append(set, "controller.service.loadBalancerIP="+ins.cfg.IngressIP)
	}
	if err := ins.rnr.HelmInstall(ctx, ins.conn, ingressReleaseName, "ingress-nginx/ingress-nginx", runner.HelmInstallOptions{
		Namespace:       ingressNamespace,
		CreateNamespace: true,
		Version:         ins.cfg.Ingress.ChartVersion,
		SetValues:       set,
		Wait:            true,
		Timeout:         common.DefaultWaitTimeout,
	}); err != nil {
		return errors.Wrap(err, "ingress controller install failed")
	}
	ins.record("ingress controller release deployed")

	if err := ins.store.Transition(common.ComponentIngress, state.StatusInstalled); err != nil {
		return err
	}
	ins.markCompletedStep(common.ComponentIngress)
	ins.record("ingress installed")
	return nil
}

func (ins *Installer) uninstallIngress(ctx context.Context) error {
	if err := ins.rnr.HelmUninstall(ctx, ins.conn, ingressReleaseName, runner.HelmUninstallOptions{
		Namespace:      ingressNamespace,
		IgnoreNotFound: true,
	}); err != nil {
		return errors.Wrap(err, "failed to uninstall ingress controller")
	}
	return nil
}

// installCertManager installs cert-manager via helm, then applies the ACME
// cluster issuer and the wildcard certificate for the platform domain.
func (ins *Installer) installCertManager(ctx context.Context) error {
	if err := ins.preflight(ctx, ins.cfg.Tools.Kubectl, ins.cfg.Tools.Helm); err != nil {
		return err
	}
	if err := ins.store.Transition(common.ComponentCertManager, state.StatusInstalling); err != nil {
		return err
	}

	if err := ins.rnr.HelmRepoAdd(ctx, ins.conn, "jetstack", ins.cfg.Certs.ChartRepo); err != nil {
		return errors.Wrap(err, "failed to add cert-manager chart repository")
	}
	if err := ins.rnr.HelmRepoUpdate(ctx, ins.conn); err != nil {
		return errors.Wrap(err, "failed to update chart repositories")
	}
	if err := ins.rnr.HelmInstall(ctx, ins.conn, certReleaseName, "jetstack/cert-manager", runner.HelmInstallOptions{
		Namespace:       certNamespace,
		CreateNamespace: true,
		Version:         ins.cfg.Certs.ChartVersion,
		SetValues:       []string{"installCRDs=true"},
		Wait:            true,
		Timeout:         common.DefaultWaitTimeout,
	}); err != nil {
		return errors.Wrap(err, "cert-manager install failed")
	}
	ins.record("cert-manager release deployed")

	issuer, err := manifest.ClusterIssuer(clusterIssuerName, ins.cfg.Certs.Email, ins.cfg.Certs.Staging)
	if err != nil {
		return err
	}
	if _, err := ins.app.Apply(ctx, issuer); err != nil {
		return errors.Wrap(err, "failed to apply cluster issuer")
	}

	cert, err := manifest.Certificate(certificateName, ins.cfg.Namespace, clusterIssuerName, []string{
		ins.cfg.Domain,
		"*." + ins.cfg.Domain,
	})
	if err != nil {
		return err
	}
	if _, err := ins.app.Apply(ctx, cert); err != nil {
		return errors.Wrap(err, "failed to apply wildcard certificate")
	}
	ins.record("issuer and wildcard certificate applied for %s", ins.cfg.Domain)

	if err := ins.store.Transition(common.ComponentCertManager, state.StatusInstalled); err != nil {
		return err
	}
	ins.markCompletedStep(common.ComponentCertManager)
	ins.record("certificates installed")
	return nil
}

func (ins *Installer) uninstallCertManager(ctx context.Context) error {
	if err := ins.app.Remove(ctx, "certificate", certificateName, ins.cfg.Namespace); err != nil {
		return err
	}
	if err := ins.app.Remove(ctx, "clusterissuer", clusterIssuerName, ""); err != nil {
		return err
	}
	if err := ins.rnr.HelmUninstall(ctx, ins.conn, certReleaseName, runner.HelmUninstallOptions{
		Namespace:      certNamespace,
		IgnoreNotFound: true,
	}); err != nil {
		return errors.Wrap(err, "failed to uninstall cert-manager")
	}
	return nil
}
