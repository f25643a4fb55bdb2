package kubernetes

import (
	"context"
	"errors"

	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const fallbackNamespace = "default"

// ErrUnavailable is returned when the cluster integration is disabled or could not be
// configured.
var ErrUnavailable = errors.New("kubernetes integration unavailable")

type Config struct {
	Enabled            bool   `koanf:"enabled"`
	InCluster          bool   `koanf:"in_cluster"`
	ConfigPath         string `koanf:"config_path"`
	DefaultNamespace   string `koanf:"default_namespace"`
	DefaultImage       string `koanf:"default_image"`
	ProcessorNamespace string `koanf:"processor_namespace"`
}

// Gateway owns the connection to the cluster. A Gateway without a client answers every
// call with ErrUnavailable so callers can degrade instead of failing.
type Gateway struct {
	logger           *zap.Logger
	kubeClient       client.Client
	defaultNamespace string
}

func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := batchv1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}

func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	g := &Gateway{
		logger:           logger.Named("kubernetes"),
		defaultNamespace: cfg.DefaultNamespace,
	}
	if !cfg.Enabled {
		g.logger.Info("kubernetes integration is disabled")
		return g
	}

	restConfig, err := restConfig(cfg)
	if err != nil {
		g.logger.Error("failed to load kubernetes config", zap.Error(err))
		return g
	}

	kubeClient, err := NewKubeClient(restConfig)
	if err != nil {
		g.logger.Error("failed to create kubernetes client", zap.Error(err))
		return g
	}
	g.kubeClient = kubeClient
	g.logger.Info("kubernetes client ready",
		zap.Bool("inCluster", cfg.InCluster),
		zap.String("defaultNamespace", g.DefaultNamespace()))
	return g
}

func NewGatewayWithClient(kubeClient client.Client, defaultNamespace string, logger *zap.Logger) *Gateway {
	return &Gateway{
		logger:           logger.Named("kubernetes"),
		kubeClient:       kubeClient,
		defaultNamespace: defaultNamespace,
	}
}

func NewKubeClient(restConfig *rest.Config) (client.Client, error) {
	scheme, err := NewScheme()
	if err != nil {
		return nil, err
	}
	kubeClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, err
	}
	return kubeClient, nil
}

func restConfig(cfg Config) (*rest.Config, error) {
	switch {
	case cfg.InCluster:
		return rest.InClusterConfig()
	case cfg.ConfigPath != "":
		return clientcmd.BuildConfigFromFlags("", cfg.ConfigPath)
	default:
		return ctrl.GetConfig()
	}
}

func (g *Gateway) Enabled() bool {
	return g != nil && g.kubeClient != nil
}

func (g *Gateway) Client() (client.Client, error) {
	if !g.Enabled() {
		return nil, ErrUnavailable
	}
	return g.kubeClient, nil
}

func (g *Gateway) DefaultNamespace() string {
	if g == nil || g.defaultNamespace == "" {
		return fallbackNamespace
	}
	return g.defaultNamespace
}

func (g *Gateway) namespace(ns string) string {
	if ns == "" {
		return g.DefaultNamespace()
	}
	return ns
}

// Create submits obj, defaulting its namespace.
func (g *Gateway) Create(ctx context.Context, obj client.Object) error {
	c, err := g.Client()
	if err != nil {
		return err
	}
	obj.SetNamespace(g.namespace(obj.GetNamespace()))
	return c.Create(ctx, obj)
}

// Get fills obj and reports whether the object exists.
func (g *Gateway) Get(ctx context.Context, namespace, name string, obj client.Object) (bool, error) {
	c, err := g.Client()
	if err != nil {
		return false, err
	}
	err = c.Get(ctx, client.ObjectKey{Namespace: g.namespace(namespace), Name: name}, obj)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes obj; a missing object is not an error.
func (g *Gateway) Delete(ctx context.Context, obj client.Object, opts ...client.DeleteOption) error {
	c, err := g.Client()
	if err != nil {
		return err
	}
	obj.SetNamespace(g.namespace(obj.GetNamespace()))
	if err := c.Delete(ctx, obj, opts...); err != nil && !apierrors.IsNotFound(err) {
		return err
	}
	return nil
}

func (g *Gateway) Secret(ctx context.Context, namespace, name string) (*corev1.Secret, error) {
	var secret corev1.Secret
	found, err := g.Get(ctx, namespace, name, &secret)
	if err != nil || !found {
		return nil, err
	}
	return &secret, nil
}

func (g *Gateway) ConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error) {
	var cm corev1.ConfigMap
	found, err := g.Get(ctx, namespace, name, &cm)
	if err != nil || !found {
		return nil, err
	}
	return &cm, nil
}

func (g *Gateway) PersistentVolumeClaim(ctx context.Context, namespace, name string) (*corev1.PersistentVolumeClaim, error) {
	var pvc corev1.PersistentVolumeClaim
	found, err := g.Get(ctx, namespace, name, &pvc)
	if err != nil || !found {
		return nil, err
	}
	return &pvc, nil
}

func (g *Gateway) BatchJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	var job batchv1.Job
	found, err := g.Get(ctx, namespace, name, &job)
	if err != nil || !found {
		return nil, err
	}
	return &job, nil
}

// DeleteBatchJob removes a job and its pods.
func (g *Gateway) DeleteBatchJob(ctx context.Context, namespace, name string) error {
	job := &batchv1.Job{}
	job.SetName(name)
	job.SetNamespace(namespace)
	return g.Delete(ctx, job, client.PropagationPolicy(metav1.DeletePropagationBackground))
}
