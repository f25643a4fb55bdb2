package keruta

import (
	"errors"
	"net/http"

	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/keruta-io/keruta/pkg/utils"
	"github.com/keruta-io/keruta/services/keruta/api"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/keruta-io/keruta/services/keruta/scheduler"
	"github.com/keruta-io/keruta/services/keruta/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type httpRoutes struct {
	logger *zap.Logger

	tasks        *service.TaskService
	jobs         *service.JobService
	repositories *service.RepositoryService
	scheduler    *scheduler.Scheduler
}

func (r *httpRoutes) Register(e *echo.Echo) {
	e.GET("/health", r.health)

	v1 := e.Group("/api/v1")

	v1.GET("/tasks", r.listTasks)
	v1.POST("/tasks", r.createTask)
	v1.GET("/tasks/:id", r.getTask)
	v1.DELETE("/tasks/:id", r.deleteTask)
	v1.PUT("/tasks/:id/status", r.updateTaskStatus)
	v1.PUT("/tasks/:id/priority", r.updateTaskPriority)
	v1.POST("/tasks/:id/logs", r.appendTaskLogs)
	v1.GET("/tasks/:id/children", r.taskChildren)
	v1.GET("/tasks/:id/jobs", r.taskJobs)

	v1.GET("/jobs", r.listJobs)
	v1.GET("/jobs/:id", r.getJob)
	v1.PUT("/jobs/:id/status", r.updateJobStatus)
	v1.POST("/jobs/:id/logs", r.appendJobLogs)
	v1.POST("/jobs/:id/launch", r.launchJob)

	v1.GET("/repositories", r.listRepositories)
	v1.POST("/repositories", r.createRepository)
	v1.GET("/repositories/:id", r.getRepository)
	v1.PUT("/repositories/:id", r.updateRepository)
	v1.DELETE("/repositories/:id", r.deleteRepository)
	v1.POST("/repositories/:id/validate", r.validateRepository)
	// Fetched by the bootstrap script inside execution units.
	v1.GET("/repositories/:id/script", r.repositoryScript)

	v1.POST("/scheduler/tick", r.tick)
}

func bindValidate(ctx echo.Context, i interface{}) error {
	if err := ctx.Bind(i); err != nil {
		return err
	}

	if err := ctx.Validate(i); err != nil {
		return err
	}

	return nil
}

// fail maps service errors onto status codes.
func (r *httpRoutes) fail(ctx echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return ctx.JSON(http.StatusNotFound, api.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidStatus):
		return ctx.JSON(http.StatusBadRequest, api.ErrorResponse{Message: err.Error()})
	}
	r.logger.Error(msg, zap.Error(err))
	return ctx.JSON(http.StatusInternalServerError, api.ErrorResponse{Message: msg})
}

func badRequest(ctx echo.Context, err error) error {
	return ctx.JSON(http.StatusBadRequest, api.ErrorResponse{Message: err.Error()})
}

func (r *httpRoutes) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (r *httpRoutes) listTasks(ctx echo.Context) error {
	page, size, err := utils.PageConfigFromStrings(ctx.QueryParam("page"), ctx.QueryParam("pageSize"))
	if err != nil {
		return badRequest(ctx, err)
	}

	var tasks []models.Task
	if status := ctx.QueryParam("status"); status != "" {
		tasks, err = r.tasks.FindByStatus(ctx.Request().Context(), models.TaskStatus(status))
	} else {
		tasks, err = r.tasks.ListTasks(ctx.Request().Context())
	}
	if err != nil {
		return r.fail(ctx, err, "failed to list tasks")
	}

	return ctx.JSON(http.StatusOK, api.TaskListResponse{
		Items:      utils.Paginate(tasks, page, size),
		TotalCount: len(tasks),
	})
}

func (r *httpRoutes) createTask(ctx echo.Context) error {
	var req api.CreateTaskRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	task, err := r.tasks.CreateTask(ctx.Request().Context(), req.ToModel())
	if err != nil {
		return r.fail(ctx, err, "failed to create task")
	}
	return ctx.JSON(http.StatusCreated, task)
}

func (r *httpRoutes) getTask(ctx echo.Context) error {
	task, err := r.tasks.GetTask(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return r.fail(ctx, err, "failed to get task")
	}
	return ctx.JSON(http.StatusOK, task)
}

func (r *httpRoutes) deleteTask(ctx echo.Context) error {
	if err := r.tasks.DeleteTask(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return r.fail(ctx, err, "failed to delete task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (r *httpRoutes) updateTaskStatus(ctx echo.Context) error {
	var req api.UpdateStatusRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	task, err := r.tasks.UpdateTaskStatus(ctx.Request().Context(), ctx.Param("id"), models.TaskStatus(req.Status))
	if err != nil {
		return r.fail(ctx, err, "failed to update task status")
	}
	return ctx.JSON(http.StatusOK, task)
}

func (r *httpRoutes) updateTaskPriority(ctx echo.Context) error {
	var req api.UpdatePriorityRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	task, err := r.tasks.UpdateTaskPriority(ctx.Request().Context(), ctx.Param("id"), req.Priority)
	if err != nil {
		return r.fail(ctx, err, "failed to update task priority")
	}
	return ctx.JSON(http.StatusOK, task)
}

func (r *httpRoutes) appendTaskLogs(ctx echo.Context) error {
	var req api.AppendLogsRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	task, err := r.tasks.AppendTaskLogs(ctx.Request().Context(), ctx.Param("id"), req.Logs)
	if err != nil {
		return r.fail(ctx, err, "failed to append task logs")
	}
	return ctx.JSON(http.StatusOK, task)
}

func (r *httpRoutes) taskChildren(ctx echo.Context) error {
	children, err := r.tasks.Children(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return r.fail(ctx, err, "failed to list sub-tasks")
	}
	return ctx.JSON(http.StatusOK, api.TaskListResponse{Items: children, TotalCount: len(children)})
}

func (r *httpRoutes) taskJobs(ctx echo.Context) error {
	jobs, err := r.jobs.JobsForTask(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return r.fail(ctx, err, "failed to list task jobs")
	}
	return ctx.JSON(http.StatusOK, api.JobListResponse{Items: jobs, TotalCount: len(jobs)})
}

func (r *httpRoutes) listJobs(ctx echo.Context) error {
	page, size, err := utils.PageConfigFromStrings(ctx.QueryParam("page"), ctx.QueryParam("pageSize"))
	if err != nil {
		return badRequest(ctx, err)
	}

	var jobs []models.Job
	if status := ctx.QueryParam("status"); status != "" {
		jobs, err = r.jobs.FindByStatus(ctx.Request().Context(), models.JobStatus(status))
	} else {
		jobs, err = r.jobs.ListJobs(ctx.Request().Context())
	}
	if err != nil {
		return r.fail(ctx, err, "failed to list jobs")
	}

	return ctx.JSON(http.StatusOK, api.JobListResponse{
		Items:      utils.Paginate(jobs, page, size),
		TotalCount: len(jobs),
	})
}

func (r *httpRoutes) getJob(ctx echo.Context) error {
	job, err := r.jobs.GetJob(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return r.fail(ctx, err, "failed to get job")
	}
	return ctx.JSON(http.StatusOK, job)
}

func (r *httpRoutes) updateJobStatus(ctx echo.Context) error {
	var req api.UpdateStatusRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	job, err := r.jobs.UpdateJobStatus(ctx.Request().Context(), ctx.Param("id"), models.JobStatus(req.Status))
	if err != nil {
		return r.fail(ctx, err, "failed to update job status")
	}
	return ctx.JSON(http.StatusOK, job)
}

func (r *httpRoutes) appendJobLogs(ctx echo.Context) error {
	var req api.AppendLogsRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	job, err := r.jobs.AppendJobLogs(ctx.Request().Context(), ctx.Param("id"), req.Logs)
	if err != nil {
		return r.fail(ctx, err, "failed to append job logs")
	}
	return ctx.JSON(http.StatusOK, job)
}

func (r *httpRoutes) launchJob(ctx echo.Context) error {
	job, name, err := r.jobs.Launch(ctx.Request().Context(), ctx.Param("id"))
	if job == nil {
		return r.fail(ctx, err, "failed to launch job")
	}

	resp := api.LaunchJobResponse{Job: *job, UnitName: name}
	if err != nil {
		resp.Error = err.Error()
		code := http.StatusBadGateway
		if errors.Is(err, kubernetes.ErrUnavailable) {
			code = http.StatusServiceUnavailable
		}
		return ctx.JSON(code, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (r *httpRoutes) listRepositories(ctx echo.Context) error {
	repos, err := r.repositories.ListRepositories(ctx.Request().Context())
	if err != nil {
		return r.fail(ctx, err, "failed to list repositories")
	}
	return ctx.JSON(http.StatusOK, repos)
}

func (r *httpRoutes) createRepository(ctx echo.Context) error {
	var req api.RepositoryRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	repo, err := r.repositories.CreateRepository(ctx.Request().Context(), req.ToModel())
	if err != nil {
		return r.fail(ctx, err, "failed to create repository")
	}
	return ctx.JSON(http.StatusCreated, repo)
}

func (r *httpRoutes) getRepository(ctx echo.Context) error {
	repo, err := r.repositories.GetRepository(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return r.fail(ctx, err, "failed to get repository")
	}
	return ctx.JSON(http.StatusOK, repo)
}

func (r *httpRoutes) updateRepository(ctx echo.Context) error {
	var req api.RepositoryRequest
	if err := bindValidate(ctx, &req); err != nil {
		return badRequest(ctx, err)
	}

	repo, err := r.repositories.UpdateRepository(ctx.Request().Context(), ctx.Param("id"), req.ToModel())
	if err != nil {
		return r.fail(ctx, err, "failed to update repository")
	}
	return ctx.JSON(http.StatusOK, repo)
}

func (r *httpRoutes) deleteRepository(ctx echo.Context) error {
	if err := r.repositories.DeleteRepository(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return r.fail(ctx, err, "failed to delete repository")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (r *httpRoutes) validateRepository(ctx echo.Context) error {
	repo, err := r.repositories.Revalidate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return r.fail(ctx, err, "failed to validate repository")
	}
	return ctx.JSON(http.StatusOK, repo)
}

func (r *httpRoutes) repositoryScript(ctx echo.Context) error {
	repo, err := r.repositories.GetRepository(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return r.fail(ctx, err, "failed to get repository script")
	}
	if repo.SetupScript == "" {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.String(http.StatusOK, repo.SetupScript)
}

func (r *httpRoutes) tick(ctx echo.Context) error {
	result := r.scheduler.Tick(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, map[string]string{"result": string(result)})
}
