package jobbuilder

import (
	"github.com/keruta-io/keruta/services/keruta/db/models"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	LabelApp       = "app"
	LabelTaskID    = "keruta.io/task-id"
	LabelComponent = "keruta.io/component"

	AppName          = "keruta"
	ComponentTaskJob = "task-job"

	jobNamePrefix = "keruta-job-"
)

// JobName is the default execution unit name for a task.
func JobName(taskID string) string {
	return jobNamePrefix + taskID
}

func Labels(task models.Task) map[string]string {
	return map[string]string{
		LabelApp:       AppName,
		LabelTaskID:    task.ID,
		LabelComponent: ComponentTaskJob,
	}
}

func BuildMetadata(task models.Task, name, namespace string) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      name,
		Namespace: namespace,
		Labels:    Labels(task),
	}
}
