package provisioner

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	managedByLabel = "app.kubernetes.io/managed-by"

	// OwnerAnnotation holds the exact uid of the tenant a gateway serves.
	OwnerAnnotation = "lakeadmin/owner"
)

// KubeProvisioner runs every gateway as a single-replica Deployment whose
// environment comes from a Secret of the same name.
type KubeProvisioner struct {
	client    kubernetes.Interface
	namespace string
	log       logging.Logger
}

func NewKubeProvisioner(client kubernetes.Interface, namespace string, log logging.Logger) *KubeProvisioner {
	return &KubeProvisioner{client: client, namespace: namespace, log: log.With("module", "provisioner")}
}

// LoadKubeClient builds a clientset from kubeConfigPath, or from the
// in-cluster service account when the path is empty.
func LoadKubeClient(kubeConfigPath string) (kubernetes.Interface, error) {
	config, err := getConfig(kubeConfigPath)
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(config)
}

func getConfig(kubeConfigPath string) (*rest.Config, error) {
	if kubeConfigPath == "" {
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("in-cluster config: %w", err)
		}
		return config, nil
	}
	config, err := clientcmd.BuildConfigFromFlags("", kubeConfigPath)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve kubeconfig %q: %w", kubeConfigPath, err)
	}
	return config, nil
}

// StartService creates the Secret, the Deployment and, when a port is set,
// the Service for svc. An existing Deployment of the same owner yields
// ErrAlreadyExists and nothing is changed; one of another owner yields
// ErrOwnerMismatch. A Secret left over from an interrupted attempt of the
// same owner is updated.
func (p *KubeProvisioner) StartService(ctx context.Context, svc ServiceSpec) error {
	if err := svc.validate(); err != nil {
		return err
	}

	labels := map[string]string{"app": svc.Name, managedByLabel: "lakeadmin"}
	for k, v := range svc.Labels {
		labels[k] = v
	}
	meta := metav1.ObjectMeta{Name: svc.Name, Namespace: p.namespace, Labels: labels}
	if svc.Owner != "" {
		meta.Annotations = map[string]string{OwnerAnnotation: svc.Owner}
	}

	deployments := p.client.AppsV1().Deployments(p.namespace)
	existing, err := deployments.Get(ctx, svc.Name, metav1.GetOptions{})
	switch {
	case err == nil:
		if err := checkOwner(existing.ObjectMeta, svc.Owner); err != nil {
			return err
		}
		p.log.Debug(ctx, "deployment exists", "name", svc.Name)
		return ErrAlreadyExists
	case !apierrors.IsNotFound(err):
		return kubeError("get deployment", svc.Name, err)
	}

	if err := p.applySecret(ctx, meta, svc.Owner, svc.Env); err != nil {
		return err
	}

	_, err = deployments.Create(ctx, deployment(meta, svc), metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			p.log.Debug(ctx, "deployment exists", "name", svc.Name)
			return ErrAlreadyExists
		}
		return kubeError("create deployment", svc.Name, err)
	}

	if svc.Port > 0 {
		_, err = p.client.CoreV1().Services(p.namespace).Create(ctx, service(meta, svc.Port), metav1.CreateOptions{})
		if err != nil && !apierrors.IsAlreadyExists(err) {
			return kubeError("create service", svc.Name, err)
		}
	}

	p.log.Info(ctx, "gateway requested", "name", svc.Name, "namespace", p.namespace, "image", svc.Image)
	return nil
}

func (p *KubeProvisioner) applySecret(ctx context.Context, meta metav1.ObjectMeta, owner string, env map[string]string) error {
	secret := &corev1.Secret{
		ObjectMeta: meta,
		Type:       corev1.SecretTypeOpaque,
		StringData: env,
	}
	secrets := p.client.CoreV1().Secrets(p.namespace)

	_, err := secrets.Create(ctx, secret, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return kubeError("create secret", meta.Name, err)
	}

	current, err := secrets.Get(ctx, meta.Name, metav1.GetOptions{})
	if err != nil {
		return kubeError("get secret", meta.Name, err)
	}
	if err := checkOwner(current.ObjectMeta, owner); err != nil {
		return err
	}
	secret.ResourceVersion = current.ResourceVersion
	if _, err := secrets.Update(ctx, secret, metav1.UpdateOptions{}); err != nil {
		return kubeError("update secret", meta.Name, err)
	}
	return nil
}

// checkOwner accepts objects without an owner annotation, which predate it.
func checkOwner(meta metav1.ObjectMeta, owner string) error {
	if got := meta.Annotations[OwnerAnnotation]; got != "" && got != owner {
		return fmt.Errorf("%w: %s belongs to %q", ErrOwnerMismatch, meta.Name, got)
	}
	return nil
}

func deployment(meta metav1.ObjectMeta, svc ServiceSpec) *appsv1.Deployment {
	replicas := int32(1)
	container := corev1.Container{
		Name:  "gateway",
		Image: svc.Image,
		Args:  svc.Args,
		EnvFrom: []corev1.EnvFromSource{{
			SecretRef: &corev1.SecretEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: meta.Name},
			},
		}},
	}
	if svc.Port > 0 {
		container.Ports = []corev1.ContainerPort{{Name: "s3", ContainerPort: svc.Port}}
	}
	return &appsv1.Deployment{
		ObjectMeta: meta,
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": meta.Name}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: meta.Labels},
				Spec:       corev1.PodSpec{Containers: []corev1.Container{container}},
			},
		},
	}
}

func service(meta metav1.ObjectMeta, port int32) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: meta,
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": meta.Name},
			Ports: []corev1.ServicePort{{
				Name:       "s3",
				Port:       port,
				TargetPort: intstr.FromInt32(port),
			}},
		},
	}
}

func kubeError(op, name string, err error) error {
	kind := common.ErrorBackend
	if errors.Is(err, context.DeadlineExceeded) || apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err) {
		kind = common.ErrorBackendTimeout
	}
	return fmt.Errorf("%w: %s %s: %v", kind, op, name, err)
}
