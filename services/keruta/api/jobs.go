package api

import "github.com/keruta-io/keruta/services/keruta/db/models"

type JobListResponse struct {
	Items      []models.Job `json:"items"`
	TotalCount int          `json:"totalCount"`
}

type LaunchJobResponse struct {
	Job      models.Job `json:"job"`
	UnitName string     `json:"unitName"`
	Error    string     `json:"error,omitempty"`
}
