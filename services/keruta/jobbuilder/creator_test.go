package jobbuilder

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

var errorName = regexp.MustCompile(`^error-[0-9a-f]{8}$`)

func newTestCreator(gateway *kubernetes.Gateway, cfg CreatorConfig) *Creator {
	m := NewMaterializer(gateway, MaterializerConfig{}, zap.NewNop())
	return NewCreator(gateway, m, cfg, zap.NewNop())
}

func getJob(t *testing.T, c client.Client, namespace, name string) batchv1.Job {
	t.Helper()
	var job batchv1.Job
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: namespace, Name: name}, &job))
	return job
}

func TestCreateDisabled(t *testing.T) {
	gateway := kubernetes.NewGateway(kubernetes.Config{Enabled: false}, zap.NewNop())
	creator := newTestCreator(gateway, CreatorConfig{DefaultImage: "agent:1"})

	name, err := creator.Create(context.Background(), UnitRequest{Task: sampleTask()})
	assert.Equal(t, DisabledUnitName, name)
	assert.ErrorIs(t, err, kubernetes.ErrUnavailable)
	assert.True(t, IsSentinelName(name))
}

func TestCreateWithoutRepository(t *testing.T) {
	gateway, c := newTestGateway(t, nil)
	creator := newTestCreator(gateway, CreatorConfig{DefaultImage: "agent:1", APIURL: "http://api"})

	task := sampleTask()
	task.RepositoryID = nil
	name, err := creator.Create(context.Background(), UnitRequest{Task: task})
	require.NoError(t, err)
	assert.Equal(t, "keruta-job-task-1", name)
	assert.False(t, IsSentinelName(name))

	job := getJob(t, c, testNamespace, name)
	assert.Equal(t, "task-1", job.Labels[LabelTaskID])
	spec := job.Spec.Template.Spec
	assert.Empty(t, spec.InitContainers)
	require.Len(t, spec.Volumes, 1)
	assert.NotNil(t, spec.Volumes[0].EmptyDir)

	require.Len(t, spec.Containers, 1)
	main := spec.Containers[0]
	assert.Equal(t, "agent:1", main.Image)
	require.Len(t, main.VolumeMounts, 1)
	assert.Equal(t, WorkVolumeName, main.VolumeMounts[0].Name)
	assert.Equal(t, DefaultWorkMountPath, main.VolumeMounts[0].MountPath)
	assert.Equal(t, bootstrapArg0, main.Command[3])

	_, n := findEnv(main.Env, EnvAPIToken)
	assert.Zero(t, n, "token is omitted without its secret")
}

func TestCreateWithRepository(t *testing.T) {
	token := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "keruta-api-token", Namespace: testNamespace},
		Data:       map[string][]byte{"token": []byte("s3cret")},
	}
	gateway, c := newTestGateway(t, nil, token, credentialsSecret("r1"))
	creator := newTestCreator(gateway, CreatorConfig{
		DefaultImage: "agent:1",
		TokenSecret:  "keruta-api-token",
	})

	repo := testRepo
	name, err := creator.Create(context.Background(), UnitRequest{
		Task:          sampleTask(),
		Image:         "custom:2",
		Name:          "explicit-name",
		AdditionalEnv: map[string]string{"EXTRA": "1"},
		Repository:    &repo,
	})
	require.NoError(t, err)
	assert.Equal(t, "explicit-name", name)

	job := getJob(t, c, testNamespace, name)
	spec := job.Spec.Template.Spec
	require.Len(t, spec.InitContainers, 1)
	assert.Equal(t, CloneContainerName, spec.InitContainers[0].Name)
	require.Len(t, spec.Volumes, 2)
	assert.Equal(t, "git-repo-task-1", spec.Volumes[0].PersistentVolumeClaim.ClaimName)

	main := spec.Containers[0]
	assert.Equal(t, "custom:2", main.Image)
	require.Len(t, main.VolumeMounts, 1)
	assert.Equal(t, RepositoryVolumeName, main.VolumeMounts[0].Name)
	assert.Equal(t, DefaultRepoMountPath, main.VolumeMounts[0].MountPath)
	assert.Equal(t, spec.InitContainers[0].VolumeMounts[0].MountPath, main.VolumeMounts[0].MountPath)

	tokenEnv, n := findEnv(main.Env, EnvAPIToken)
	require.Equal(t, 1, n)
	assert.Equal(t, "keruta-api-token", tokenEnv.ValueFrom.SecretKeyRef.Name)
	assert.Equal(t, DefaultTokenKey, tokenEnv.ValueFrom.SecretKeyRef.Key)

	extra, _ := findEnv(main.Env, "EXTRA")
	assert.Equal(t, "1", extra.Value)
	foo, n := findEnv(main.Env, "FOO")
	assert.Equal(t, 1, n)
	assert.Equal(t, "BAR", foo.Value)

	var pvc corev1.PersistentVolumeClaim
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: testNamespace, Name: "git-repo-task-1"}, &pvc))
}

func TestCreateNamespaceResolution(t *testing.T) {
	gateway, c := newTestGateway(t, nil)

	processor := newTestCreator(gateway, CreatorConfig{DefaultImage: "agent:1", ProcessorNamespace: "processors"})
	task := sampleTask()
	task.RepositoryID = nil

	name, err := processor.Create(context.Background(), UnitRequest{Task: task})
	require.NoError(t, err)
	getJob(t, c, "processors", name)

	task.ID = "task-2"
	task.Namespace = "from-task"
	name, err = processor.Create(context.Background(), UnitRequest{Task: task})
	require.NoError(t, err)
	getJob(t, c, "from-task", name)

	task.ID = "task-3"
	name, err = processor.Create(context.Background(), UnitRequest{Task: task, Namespace: "from-request"})
	require.NoError(t, err)
	getJob(t, c, "from-request", name)

	fallback := newTestCreator(gateway, CreatorConfig{DefaultImage: "agent:1"})
	task.ID = "task-4"
	task.Namespace = ""
	name, err = fallback.Create(context.Background(), UnitRequest{Task: task})
	require.NoError(t, err)
	getJob(t, c, testNamespace, name)
}

func TestCreateSubmissionFailure(t *testing.T) {
	funcs := &interceptor.Funcs{
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			if _, ok := obj.(*batchv1.Job); ok {
				return errors.New("boom")
			}
			return c.Create(ctx, obj, opts...)
		},
	}
	gateway, _ := newTestGateway(t, funcs)
	creator := newTestCreator(gateway, CreatorConfig{DefaultImage: "agent:1"})

	name, err := creator.Create(context.Background(), UnitRequest{Task: sampleTask()})
	assert.ErrorContains(t, err, "boom")
	assert.Regexp(t, errorName, name)
	assert.True(t, IsSentinelName(name))
}

func TestCreateInvalidResources(t *testing.T) {
	gateway, _ := newTestGateway(t, nil)
	creator := newTestCreator(gateway, CreatorConfig{DefaultImage: "agent:1"})

	name, err := creator.Create(context.Background(), UnitRequest{
		Task:      sampleTask(),
		Resources: &models.Resources{Memory: "a lot"},
	})
	assert.Error(t, err)
	assert.Regexp(t, errorName, name)
}

func TestCreateSubTaskWithoutParentClaim(t *testing.T) {
	gateway, c := newTestGateway(t, nil)
	creator := newTestCreator(gateway, CreatorConfig{DefaultImage: "agent:1"})

	repo := testRepo
	name, err := creator.Create(context.Background(), UnitRequest{
		Task:       subTask("child", "root"),
		Repository: &repo,
	})
	assert.ErrorIs(t, err, ErrParentClaimMissing)
	assert.Regexp(t, errorName, name)

	var jobs batchv1.JobList
	require.NoError(t, c.List(context.Background(), &jobs))
	assert.Empty(t, jobs.Items)
}
