package jobbuilder

import (
	"testing"
	"time"

	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

func sampleTask() models.Task {
	repo := "repo-1"
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.Task{
		ID:            "task-1",
		Title:         "fix the build",
		Description:   "make ci green",
		Priority:      7,
		Status:        models.TaskStatusInProgress,
		RepositoryID:  &repo,
		Documents:     []string{"doc-9", "doc-10"},
		AgentID:       "agent-3",
		AdditionalEnv: map[string]string{"FOO": "BAR"},
		CreatedAt:     created,
		UpdatedAt:     created.Add(time.Minute),
	}
}

func TestBuildMetadata(t *testing.T) {
	meta := BuildMetadata(sampleTask(), "keruta-job-task-1", "jobs")

	assert.Equal(t, "keruta-job-task-1", meta.Name)
	assert.Equal(t, "jobs", meta.Namespace)
	assert.Equal(t, map[string]string{
		"app":                 "keruta",
		"keruta.io/task-id":   "task-1",
		"keruta.io/component": "task-job",
	}, meta.Labels)
	assert.Equal(t, "keruta-job-abc", JobName("abc"))
}

func TestBuildEnv(t *testing.T) {
	env := BuildEnv(sampleTask(), EnvOptions{
		APIURL:          "http://api:8080",
		AgentReleaseURL: "http://releases/agent",
		Additional: map[string]string{
			"ALPHA":   "1",
			EnvTaskID: "spoofed",
			"":        "ignored",
			"FOO":     "BAR",
		},
	})

	foo, count := findEnv(env, "FOO")
	assert.Equal(t, 1, count)
	assert.Equal(t, "BAR", foo.Value)

	id, count := findEnv(env, EnvTaskID)
	assert.Equal(t, 1, count, "reserved variables are never duplicated")
	assert.Equal(t, "task-1", id.Value)

	expectFixed := map[string]string{
		EnvTaskTitle:       "fix the build",
		EnvTaskDescription: "make ci green",
		EnvTaskPriority:    "7",
		EnvTaskStatus:      "IN_PROGRESS",
		EnvTaskCreatedAt:   "2024-03-01T10:00:00Z",
		EnvTaskUpdatedAt:   "2024-03-01T10:01:00Z",
		EnvRepositoryID:    "repo-1",
		EnvDocumentID:      "doc-9",
		EnvAgentID:         "agent-3",
		EnvAPIURL:          "http://api:8080",
		EnvAgentReleaseURL: "http://releases/agent",
	}
	for name, value := range expectFixed {
		got, n := findEnv(env, name)
		assert.Equal(t, 1, n, name)
		assert.Equal(t, value, got.Value, name)
	}

	names := envNames(env)
	assert.Equal(t, []string{"ALPHA", "FOO"}, names[len(names)-2:], "additional variables follow the fixed set sorted by key")

	_, n := findEnv(env, EnvAPIToken)
	assert.Zero(t, n)
}

func TestBuildEnvAPIToken(t *testing.T) {
	env := BuildEnv(sampleTask(), EnvOptions{
		APIToken: &corev1.SecretKeySelector{
			LocalObjectReference: corev1.LocalObjectReference{Name: "keruta-api-token"},
			Key:                  "token",
		},
	})

	token, n := findEnv(env, EnvAPIToken)
	require.Equal(t, 1, n)
	assert.Empty(t, token.Value)
	require.NotNil(t, token.ValueFrom)
	require.NotNil(t, token.ValueFrom.SecretKeyRef)
	assert.Equal(t, "keruta-api-token", token.ValueFrom.SecretKeyRef.Name)
	assert.Equal(t, "token", token.ValueFrom.SecretKeyRef.Key)
}

func TestBuildMainContainer(t *testing.T) {
	c, err := BuildMainContainer(MainContainerInput{
		Image:     "agent:1",
		Env:       BuildEnv(sampleTask(), EnvOptions{}),
		Resources: &models.Resources{CPU: "500m", Memory: "1Gi"},
	})
	require.NoError(t, err)

	assert.Equal(t, MainContainerName, c.Name)
	assert.Equal(t, "agent:1", c.Image)
	assert.Equal(t, []string{"/bin/sh", "-c", agentLaunchScript}, c.Command)
	assert.Contains(t, agentLaunchScript, "execute --task-id")
	assert.True(t, c.Resources.Requests[corev1.ResourceCPU].Equal(resource.MustParse("500m")))
	assert.True(t, c.Resources.Limits[corev1.ResourceMemory].Equal(resource.MustParse("1Gi")))

	_, err = BuildMainContainer(MainContainerInput{
		Image:     "agent:1",
		Resources: &models.Resources{CPU: "lots"},
	})
	assert.ErrorContains(t, err, "invalid cpu quantity")

	_, err = BuildMainContainer(MainContainerInput{})
	assert.Error(t, err)
}

func TestBuildResourcesEmpty(t *testing.T) {
	r, err := BuildResources(&models.Resources{})
	require.NoError(t, err)
	assert.Nil(t, r.Requests)
	assert.Nil(t, r.Limits)
}

func TestWithBootstrapIsIdempotent(t *testing.T) {
	c, err := BuildMainContainer(MainContainerInput{
		Image: "agent:1",
		Env:   BuildEnv(sampleTask(), EnvOptions{}),
	})
	require.NoError(t, err)
	original := append([]string(nil), c.Command...)

	once := WithBootstrap(c, WorkVolumeName, "/workspace")
	twice := WithBootstrap(once, WorkVolumeName, "/workspace")

	require.Len(t, twice.VolumeMounts, 1)
	assert.Equal(t, "/workspace", twice.VolumeMounts[0].MountPath)
	assert.Equal(t, once.Command, twice.Command)
	assert.Equal(t, original, twice.Command[4:], "the original command is handed off, not nested")
	assert.Equal(t, "/workspace", twice.WorkingDir)

	_, n := findEnv(twice.Env, "FOO")
	assert.Equal(t, 1, n)

	assert.Equal(t, original, c.Command, "the input container is not modified")
	assert.Empty(t, c.VolumeMounts)
}

func TestBootstrapScript(t *testing.T) {
	script := BootstrapScript("/work/it's here")

	assert.Contains(t, script, `KERUTA_WORKDIR='/work/it'"'"'s here'`)
	assert.Contains(t, script, "/api/v1/repositories/$KERUTA_REPOSITORY_ID/script")
	assert.Contains(t, script, "/api/v1/documents/$KERUTA_DOCUMENT_ID/content")
	assert.Contains(t, script, `"$KERUTA_DIR/install.sh"`)
	assert.Contains(t, script, `"$KERUTA_DIR/document.md"`)
	assert.Contains(t, script, AgentBinaryPath)
	assert.Contains(t, script, `exec "$@"`)
}

func TestBuildCloneInitContainer(t *testing.T) {
	c := BuildCloneInitContainer(CloneInput{
		URL:        "https://example.com/org/repo.git",
		Branch:     "main",
		VolumeName: RepositoryVolumeName,
		MountPath:  "/workspace/repo",
	})

	assert.Equal(t, DefaultCloneImage, c.Image)
	require.Len(t, c.VolumeMounts, 1)
	assert.Contains(t, c.Command[2], "--depth 1 --single-branch")
	assert.Contains(t, c.Command[2], ".git/info/exclude")
	url, _ := findEnv(c.Env, envCloneURL)
	assert.Equal(t, "https://example.com/org/repo.git", url.Value)
	_, n := findEnv(c.Env, "GIT_CONFIG_COUNT")
	assert.Zero(t, n)
}

func TestBuildPodTemplateAndJob(t *testing.T) {
	meta := BuildMetadata(sampleTask(), "keruta-job-task-1", "jobs")
	template := BuildPodTemplate(meta,
		[]corev1.Container{{Name: "init"}},
		[]corev1.Container{{Name: "main"}},
		[]corev1.Volume{WorkVolume(WorkVolumeName)},
		PodOptions{ServiceAccountName: "runner"})

	job := BuildJob(meta, template, JobOptions{TTLSecondsAfterFinished: 600})

	require.NotNil(t, job.Spec.BackoffLimit)
	assert.Equal(t, int32(0), *job.Spec.BackoffLimit)
	require.NotNil(t, job.Spec.TTLSecondsAfterFinished)
	assert.Equal(t, int32(600), *job.Spec.TTLSecondsAfterFinished)
	spec := job.Spec.Template.Spec
	assert.Equal(t, corev1.RestartPolicyNever, spec.RestartPolicy)
	assert.Equal(t, "runner", spec.ServiceAccountName)
	assert.Equal(t, "init", spec.InitContainers[0].Name)
	assert.Equal(t, "main", spec.Containers[0].Name)
	assert.Equal(t, "task-1", job.Spec.Template.Labels[LabelTaskID])

	noTTL := BuildJob(meta, template, JobOptions{})
	assert.Nil(t, noTTL.Spec.TTLSecondsAfterFinished)
}
