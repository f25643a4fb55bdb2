package jobbuilder

import (
	"context"
	"errors"
	"fmt"

	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	DefaultPVCPrefix       = "git-repo"
	DefaultStorageSize     = "1Gi"
	DefaultRepoMountPath   = "/workspace/repo"
	credentialSecretPrefix = "git-credentials-"
	secretUsernameKey      = "username"
	secretPasswordKey      = "password"
)

// ErrParentClaimMissing is returned for a sub-task whose root task never provisioned the
// shared claim.
var ErrParentClaimMissing = errors.New("claim of parent task not found")

type MaterializerConfig struct {
	PVCPrefix    string
	StorageSize  string
	StorageClass string
	MountPath    string
	CloneImage   string
}

// Materializer provisions the repository checkout volume of a task and the init container
// that fills it.
type Materializer struct {
	logger  *zap.Logger
	gateway *kubernetes.Gateway
	cfg     MaterializerConfig
}

func NewMaterializer(gateway *kubernetes.Gateway, cfg MaterializerConfig, logger *zap.Logger) *Materializer {
	if cfg.PVCPrefix == "" {
		cfg.PVCPrefix = DefaultPVCPrefix
	}
	if cfg.StorageSize == "" {
		cfg.StorageSize = DefaultStorageSize
	}
	if cfg.MountPath == "" {
		cfg.MountPath = DefaultRepoMountPath
	}
	return &Materializer{
		logger:  logger.Named("materializer"),
		gateway: gateway,
		cfg:     cfg,
	}
}

// ClaimName keys the checkout on the root of the task tree so sub-tasks share the parent's
// claim. An explicit claim name on the task wins.
func ClaimName(prefix string, task models.Task) string {
	if task.PVCName != "" {
		return task.PVCName
	}
	if task.IsSubTask() {
		return prefix + "-" + *task.ParentTaskID
	}
	return prefix + "-" + task.ID
}

func CredentialsSecretName(repositoryID string) string {
	return credentialSecretPrefix + repositoryID
}

type RepositoryMount struct {
	ClaimName     string
	VolumeName    string
	MountPath     string
	Volumes       []corev1.Volume
	InitContainer corev1.Container
	// Authenticated is set when a credentials secret was found.
	Authenticated bool
}

func (m *Materializer) MountPath() string {
	return m.cfg.MountPath
}

func (m *Materializer) Materialize(ctx context.Context, task models.Task, repo models.Repository, namespace string) (RepositoryMount, error) {
	logger := m.logger.With(
		zap.String("taskID", task.ID),
		zap.String("repositoryID", repo.ID),
		zap.String("namespace", namespace))

	claim := ClaimName(m.cfg.PVCPrefix, task)
	if err := m.ensureClaim(ctx, logger, task, claim, namespace); err != nil {
		return RepositoryMount{}, err
	}

	credentials := m.credentials(ctx, logger, repo, namespace)

	mount := RepositoryMount{
		ClaimName:     claim,
		VolumeName:    RepositoryVolumeName,
		MountPath:     m.cfg.MountPath,
		Volumes:       []corev1.Volume{RepositoryVolume(RepositoryVolumeName, claim)},
		Authenticated: credentials != nil,
	}
	if credentials != nil {
		mount.Volumes = append(mount.Volumes, CredentialsVolume())
	}
	mount.InitContainer = BuildCloneInitContainer(CloneInput{
		Image:       m.cfg.CloneImage,
		URL:         repo.URL,
		Branch:      repo.Branch,
		VolumeName:  RepositoryVolumeName,
		MountPath:   m.cfg.MountPath,
		Credentials: credentials,
	})
	return mount, nil
}

// ensureClaim creates the claim for root tasks only. Sub-tasks require the claim their
// root created and fail without it.
func (m *Materializer) ensureClaim(ctx context.Context, logger *zap.Logger, task models.Task, claim, namespace string) error {
	existing, err := m.gateway.PersistentVolumeClaim(ctx, namespace, claim)
	if err != nil {
		return fmt.Errorf("lookup claim %s: %w", claim, err)
	}
	if existing != nil {
		logger.Info("reusing repository claim", zap.String("claim", claim))
		return nil
	}
	if task.IsSubTask() {
		logger.Warn("claim of parent task does not exist", zap.String("claim", claim))
		return fmt.Errorf("%w: %s", ErrParentClaimMissing, claim)
	}

	pvc, err := m.buildClaim(task, claim, namespace)
	if err != nil {
		return err
	}
	if err := m.gateway.Create(ctx, pvc); err != nil {
		if apierrors.IsAlreadyExists(err) {
			logger.Info("repository claim already exists", zap.String("claim", claim))
			return nil
		}
		return fmt.Errorf("create claim %s: %w", claim, err)
	}
	logger.Info("created repository claim", zap.String("claim", claim))
	return nil
}

func (m *Materializer) buildClaim(task models.Task, claim, namespace string) (*corev1.PersistentVolumeClaim, error) {
	size, err := resource.ParseQuantity(m.cfg.StorageSize)
	if err != nil {
		return nil, fmt.Errorf("invalid storage size %q: %w", m.cfg.StorageSize, err)
	}

	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claim,
			Namespace: namespace,
			Labels: map[string]string{
				LabelApp:       AppName,
				LabelTaskID:    task.ID,
				LabelComponent: "git-repo",
			},
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: size},
			},
		},
	}
	storageClass := task.StorageClass
	if storageClass == "" {
		storageClass = m.cfg.StorageClass
	}
	if storageClass != "" {
		pvc.Spec.StorageClassName = &storageClass
	}
	return pvc, nil
}

// credentials treats lookup failures like a missing secret and clones unauthenticated.
func (m *Materializer) credentials(ctx context.Context, logger *zap.Logger, repo models.Repository, namespace string) *GitCredentials {
	name := CredentialsSecretName(repo.ID)
	secret, err := m.gateway.Secret(ctx, namespace, name)
	if err != nil {
		logger.Warn("failed to look up git credentials", zap.String("secret", name), zap.Error(err))
		return nil
	}
	if secret == nil {
		logger.Info("no git credentials secret, cloning unauthenticated", zap.String("secret", name))
		return nil
	}
	return &GitCredentials{
		SecretName:  name,
		UsernameKey: secretUsernameKey,
		PasswordKey: secretPasswordKey,
	}
}
