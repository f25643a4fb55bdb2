package jobbuilder

import (
	"sort"
	"strconv"
	"time"

	"github.com/keruta-io/keruta/services/keruta/db/models"
	corev1 "k8s.io/api/core/v1"
)

const (
	EnvTaskID              = "KERUTA_TASK_ID"
	EnvTaskTitle           = "KERUTA_TASK_TITLE"
	EnvTaskDescription     = "KERUTA_TASK_DESCRIPTION"
	EnvTaskPriority        = "KERUTA_TASK_PRIORITY"
	EnvTaskStatus          = "KERUTA_TASK_STATUS"
	EnvTaskCreatedAt       = "KERUTA_TASK_CREATED_AT"
	EnvTaskUpdatedAt       = "KERUTA_TASK_UPDATED_AT"
	EnvRepositoryID        = "KERUTA_REPOSITORY_ID"
	EnvDocumentID          = "KERUTA_DOCUMENT_ID"
	EnvAgentID             = "KERUTA_AGENT_ID"
	EnvAgentInstallCommand = "KERUTA_AGENT_INSTALL_COMMAND"
	EnvAgentExecuteCommand = "KERUTA_AGENT_EXECUTE_COMMAND"
	EnvAgentReleaseURL     = "KERUTA_AGENT_RELEASE_URL"
	EnvAPIURL              = "KERUTA_API_URL"
	EnvAPIToken            = "KERUTA_API_TOKEN"
)

var reservedEnv = map[string]struct{}{
	EnvTaskID: {}, EnvTaskTitle: {}, EnvTaskDescription: {}, EnvTaskPriority: {},
	EnvTaskStatus: {}, EnvTaskCreatedAt: {}, EnvTaskUpdatedAt: {}, EnvRepositoryID: {},
	EnvDocumentID: {}, EnvAgentID: {}, EnvAgentInstallCommand: {}, EnvAgentExecuteCommand: {},
	EnvAgentReleaseURL: {}, EnvAPIURL: {}, EnvAPIToken: {},
}

// IsReservedEnv reports whether name is set by the builder itself and cannot be overridden.
func IsReservedEnv(name string) bool {
	_, ok := reservedEnv[name]
	return ok
}

type EnvOptions struct {
	AgentReleaseURL     string
	APIURL              string
	AgentInstallCommand string
	AgentExecuteCommand string
	// APIToken points at the secret key holding the API token. Nil omits KERUTA_API_TOKEN.
	APIToken *corev1.SecretKeySelector
	// Additional is merged over the task's own additional environment.
	Additional map[string]string
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func BuildEnv(task models.Task, opts EnvOptions) []corev1.EnvVar {
	repositoryID := ""
	if task.RepositoryID != nil {
		repositoryID = *task.RepositoryID
	}

	env := []corev1.EnvVar{
		{Name: EnvTaskID, Value: task.ID},
		{Name: EnvTaskTitle, Value: task.Title},
		{Name: EnvTaskDescription, Value: task.Description},
		{Name: EnvTaskPriority, Value: strconv.Itoa(task.Priority)},
		{Name: EnvTaskStatus, Value: string(task.Status)},
		{Name: EnvTaskCreatedAt, Value: formatTime(task.CreatedAt)},
		{Name: EnvTaskUpdatedAt, Value: formatTime(task.UpdatedAt)},
		{Name: EnvRepositoryID, Value: repositoryID},
		{Name: EnvDocumentID, Value: task.DocumentID()},
		{Name: EnvAgentID, Value: task.AgentID},
		{Name: EnvAgentInstallCommand, Value: opts.AgentInstallCommand},
		{Name: EnvAgentExecuteCommand, Value: opts.AgentExecuteCommand},
		{Name: EnvAgentReleaseURL, Value: opts.AgentReleaseURL},
		{Name: EnvAPIURL, Value: opts.APIURL},
	}
	if opts.APIToken != nil {
		env = append(env, corev1.EnvVar{
			Name:      EnvAPIToken,
			ValueFrom: &corev1.EnvVarSource{SecretKeyRef: opts.APIToken.DeepCopy()},
		})
	}

	additional := make(map[string]string, len(task.AdditionalEnv)+len(opts.Additional))
	for k, v := range task.AdditionalEnv {
		additional[k] = v
	}
	for k, v := range opts.Additional {
		additional[k] = v
	}
	keys := make([]string, 0, len(additional))
	for k := range additional {
		if k == "" || IsReservedEnv(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: additional[k]})
	}
	return env
}
