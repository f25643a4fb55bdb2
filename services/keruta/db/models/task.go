package models

import (
	"time"

	"github.com/lib/pq"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled, TaskStatusFailed:
		return true
	}
	return false
}

// Resources are platform-native quantity strings, e.g. "500m" and "1Gi".
type Resources struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

type Task struct {
	ID            string            `gorm:"primaryKey" json:"id"`
	Seq           int64             `gorm:"index" json:"-"`
	Title         string            `gorm:"not null" json:"title"`
	Description   string            `json:"description"`
	Priority      int               `gorm:"index" json:"priority"`
	Status        TaskStatus        `gorm:"index" json:"status"`
	ParentTaskID  *string           `gorm:"index" json:"parentTaskId,omitempty"`
	RepositoryID  *string           `json:"repositoryId,omitempty"`
	Documents     pq.StringArray    `gorm:"type:text[]" json:"documents"`
	Image         string            `json:"image"`
	Namespace     string            `json:"namespace"`
	PodName       string            `json:"podName"`
	Resources     Resources         `gorm:"embedded;embeddedPrefix:resources_" json:"resources"`
	AdditionalEnv map[string]string `gorm:"serializer:json" json:"additionalEnv"`
	Logs          string            `json:"logs"`
	StorageClass  string            `json:"storageClass"`
	PVCName       string            `json:"pvcName"`
	AgentID       string            `json:"agentId"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func (t Task) IsSubTask() bool {
	return t.ParentTaskID != nil && *t.ParentTaskID != ""
}

// DocumentID is the document handed to the agent, if any.
func (t Task) DocumentID() string {
	if len(t.Documents) == 0 {
		return ""
	}
	return t.Documents[0]
}
