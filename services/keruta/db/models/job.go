package models

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

func (s JobStatus) IsFinal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type Job struct {
	ID            string            `gorm:"primaryKey" json:"id"`
	TaskID        string            `gorm:"index;not null" json:"taskId"`
	Image         string            `json:"image"`
	Namespace     string            `json:"namespace"`
	PodName       string            `json:"podName"`
	Resources     Resources         `gorm:"embedded;embeddedPrefix:resources_" json:"resources"`
	AdditionalEnv map[string]string `gorm:"serializer:json" json:"additionalEnv"`
	Status        JobStatus         `gorm:"index" json:"status"`
	Logs          string            `json:"logs"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
