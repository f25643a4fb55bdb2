package api

import "github.com/keruta-io/keruta/services/keruta/db/models"

type ResourcesRequest struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

type CreateTaskRequest struct {
	Title         string            `json:"title" validate:"required"`
	Description   string            `json:"description"`
	Priority      int               `json:"priority"`
	ParentTaskID  *string           `json:"parentTaskId"`
	RepositoryID  *string           `json:"repositoryId"`
	Documents     []string          `json:"documents"`
	Image         string            `json:"image"`
	Namespace     string            `json:"namespace"`
	Resources     ResourcesRequest  `json:"resources"`
	AdditionalEnv map[string]string `json:"additionalEnv"`
	StorageClass  string            `json:"storageClass"`
	PVCName       string            `json:"pvcName"`
	AgentID       string            `json:"agentId"`
}

func (r CreateTaskRequest) ToModel() models.Task {
	return models.Task{
		Title:         r.Title,
		Description:   r.Description,
		Priority:      r.Priority,
		ParentTaskID:  r.ParentTaskID,
		RepositoryID:  r.RepositoryID,
		Documents:     r.Documents,
		Image:         r.Image,
		Namespace:     r.Namespace,
		Resources:     models.Resources{CPU: r.Resources.CPU, Memory: r.Resources.Memory},
		AdditionalEnv: r.AdditionalEnv,
		StorageClass:  r.StorageClass,
		PVCName:       r.PVCName,
		AgentID:       r.AgentID,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type UpdatePriorityRequest struct {
	Priority int `json:"priority"`
}

type AppendLogsRequest struct {
	Logs string `json:"logs" validate:"required"`
}

type TaskListResponse struct {
	Items      []models.Task `json:"items"`
	TotalCount int           `json:"totalCount"`
}
