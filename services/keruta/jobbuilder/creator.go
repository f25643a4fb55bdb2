package jobbuilder

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/keruta-io/keruta/pkg/utils"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
)

const (
	DisabledUnitName     = "disabled"
	errorUnitPrefix      = "error-"
	DefaultWorkMountPath = "/workspace"
	DefaultTokenKey      = "token"
)

type UnitRequest struct {
	Task models.Task
	// Image, Namespace and Name fall back to the task, then to configured defaults.
	Image         string
	Namespace     string
	Name          string
	Resources     *models.Resources
	AdditionalEnv map[string]string
	Repository    *models.Repository
}

type CreatorConfig struct {
	DefaultImage       string
	ProcessorNamespace string

	AgentReleaseURL     string
	APIURL              string
	AgentInstallCommand string
	AgentExecuteCommand string
	TokenSecret         string
	TokenKey            string

	WorkMountPath           string
	ServiceAccount          string
	TTLSecondsAfterFinished int32
}

type Creator struct {
	logger       *zap.Logger
	gateway      *kubernetes.Gateway
	materializer *Materializer
	cfg          CreatorConfig
}

func NewCreator(gateway *kubernetes.Gateway, materializer *Materializer, cfg CreatorConfig, logger *zap.Logger) *Creator {
	if cfg.WorkMountPath == "" {
		cfg.WorkMountPath = DefaultWorkMountPath
	}
	if cfg.TokenKey == "" {
		cfg.TokenKey = DefaultTokenKey
	}
	return &Creator{
		logger:       logger.Named("creator"),
		gateway:      gateway,
		materializer: materializer,
		cfg:          cfg,
	}
}

func errorUnitName() string {
	return errorUnitPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// IsSentinelName reports whether name was returned for a unit that was never submitted.
func IsSentinelName(name string) bool {
	return name == DisabledUnitName || strings.HasPrefix(name, errorUnitPrefix)
}

// Namespace resolves where req is submitted: the request, then the task, then the processor
// namespace, then the cluster default.
func (c *Creator) Namespace(req UnitRequest) string {
	return utils.FirstNonEmpty(req.Namespace, req.Task.Namespace, c.cfg.ProcessorNamespace, c.gateway.DefaultNamespace())
}

// Create builds the execution unit for req and submits it. It returns the unit name, or
// DisabledUnitName with kubernetes.ErrUnavailable when the cluster integration is off, or an
// "error-" name with the cause when building or submitting failed.
func (c *Creator) Create(ctx context.Context, req UnitRequest) (string, error) {
	if !c.gateway.Enabled() {
		c.logger.Warn("cluster integration disabled, not creating execution unit", zap.String("taskID", req.Task.ID))
		return DisabledUnitName, kubernetes.ErrUnavailable
	}

	namespace := c.Namespace(req)
	name := utils.FirstNonEmpty(req.Name, JobName(req.Task.ID))
	image := utils.FirstNonEmpty(req.Image, req.Task.Image, c.cfg.DefaultImage)
	logger := c.logger.With(
		zap.String("taskID", req.Task.ID),
		zap.String("job", name),
		zap.String("namespace", namespace))

	meta := BuildMetadata(req.Task, name, namespace)

	env := BuildEnv(req.Task, EnvOptions{
		AgentReleaseURL:     c.cfg.AgentReleaseURL,
		APIURL:              c.cfg.APIURL,
		AgentInstallCommand: c.cfg.AgentInstallCommand,
		AgentExecuteCommand: c.cfg.AgentExecuteCommand,
		APIToken:            c.apiToken(ctx, logger, namespace),
		Additional:          req.AdditionalEnv,
	})

	resources := req.Resources
	if resources == nil && req.Task.Resources != (models.Resources{}) {
		res := req.Task.Resources
		resources = &res
	}
	container, err := BuildMainContainer(MainContainerInput{
		Image:     image,
		Env:       env,
		Resources: resources,
	})
	if err != nil {
		logger.Error("failed to build main container", zap.Error(err))
		return errorUnitName(), err
	}

	var (
		initContainers []corev1.Container
		volumes        []corev1.Volume
		volumeName     = WorkVolumeName
		mountPath      = c.cfg.WorkMountPath
	)
	if req.Repository != nil {
		mount, err := c.materializer.Materialize(ctx, req.Task, *req.Repository, namespace)
		if err != nil {
			logger.Error("failed to materialize repository", zap.Error(err))
			return errorUnitName(), err
		}
		initContainers = append(initContainers, mount.InitContainer)
		volumes = append(volumes, mount.Volumes...)
		volumeName = mount.VolumeName
		mountPath = mount.MountPath
	} else {
		volumes = append(volumes, WorkVolume(WorkVolumeName))
	}

	container = WithBootstrap(container, volumeName, mountPath)

	template := BuildPodTemplate(meta, initContainers, []corev1.Container{container}, volumes, PodOptions{
		ServiceAccountName: c.cfg.ServiceAccount,
	})
	job := BuildJob(meta, template, JobOptions{TTLSecondsAfterFinished: c.cfg.TTLSecondsAfterFinished})

	if err := c.gateway.Create(ctx, job); err != nil {
		logger.Error("failed to submit execution unit", zap.Error(err))
		return errorUnitName(), err
	}
	logger.Info("submitted execution unit", zap.String("image", image))
	return job.Name, nil
}

func (c *Creator) apiToken(ctx context.Context, logger *zap.Logger, namespace string) *corev1.SecretKeySelector {
	if c.cfg.TokenSecret == "" {
		return nil
	}
	secret, err := c.gateway.Secret(ctx, namespace, c.cfg.TokenSecret)
	if err != nil {
		logger.Warn("failed to look up api token secret", zap.String("secret", c.cfg.TokenSecret), zap.Error(err))
		return nil
	}
	if secret == nil {
		logger.Warn("api token secret not found, KERUTA_API_TOKEN is omitted", zap.String("secret", c.cfg.TokenSecret))
		return nil
	}
	return &corev1.SecretKeySelector{
		LocalObjectReference: corev1.LocalObjectReference{Name: c.cfg.TokenSecret},
		Key:                  c.cfg.TokenKey,
	}
}
