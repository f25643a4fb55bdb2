package api

import "github.com/keruta-io/keruta/services/keruta/db/models"

type RepositoryRequest struct {
	Name        string `json:"name" validate:"required"`
	URL         string `json:"url" validate:"required"`
	Branch      string `json:"branch"`
	Description string `json:"description"`
	SetupScript string `json:"setupScript"`
}

func (r RepositoryRequest) ToModel() models.Repository {
	return models.Repository{
		Name:        r.Name,
		URL:         r.URL,
		Branch:      r.Branch,
		Description: r.Description,
		SetupScript: r.SetupScript,
	}
}

type ErrorResponse struct {
	Message string `json:"message"`
}
