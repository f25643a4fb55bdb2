package keruta

import (
	"context"
	"fmt"

	shared "github.com/keruta-io/keruta/pkg/config"
	"github.com/keruta-io/keruta/internal/httpserver"
	"github.com/keruta-io/keruta/internal/postgres"
	"github.com/keruta-io/keruta/pkg/jq"
	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/keruta-io/keruta/pkg/utils"
	"github.com/keruta-io/keruta/services/keruta/config"
	"github.com/keruta-io/keruta/services/keruta/db"
	"github.com/keruta-io/keruta/services/keruta/jobbuilder"
	"github.com/keruta-io/keruta/services/keruta/scheduler"
	"github.com/keruta-io/keruta/services/keruta/service"
	"github.com/keruta-io/keruta/services/keruta/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "keruta"

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   serviceName,
		Short: "Schedules keruta tasks onto kubernetes execution units",
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context())
		},
	}
}

// components is everything start wires together.
type components struct {
	tasks        *service.TaskService
	jobs         *service.JobService
	repositories *service.RepositoryService
	scheduler    *scheduler.Scheduler
	syncer       *scheduler.JobStatusSyncer
	gateway      *kubernetes.Gateway
}

func newComponents(logger *zap.Logger, cfg config.Config, st service.Store, gateway *kubernetes.Gateway, events service.Publisher) components {
	materializer := jobbuilder.NewMaterializer(gateway, jobbuilder.MaterializerConfig{
		PVCPrefix:    cfg.Git.PVCPrefix,
		StorageSize:  cfg.Git.StorageSize,
		StorageClass: cfg.Git.StorageClass,
		MountPath:    cfg.Git.MountPath,
		CloneImage:   cfg.Git.CloneImage,
	}, logger)
	creator := jobbuilder.NewCreator(gateway, materializer, jobbuilder.CreatorConfig{
		DefaultImage:            cfg.Kubernetes.DefaultImage,
		ProcessorNamespace:      cfg.Kubernetes.ProcessorNamespace,
		AgentReleaseURL:         cfg.Agent.ReleaseURL,
		APIURL:                  cfg.Agent.APIURL,
		AgentInstallCommand:     cfg.Agent.InstallCommand,
		AgentExecuteCommand:     cfg.Agent.ExecuteCommand,
		TokenSecret:             cfg.Agent.TokenSecret,
		TokenKey:                cfg.Agent.TokenKey,
		WorkMountPath:           cfg.Job.WorkMountPath,
		ServiceAccount:          cfg.Job.ServiceAccount,
		TTLSecondsAfterFinished: cfg.Job.TTLSecondsAfterFinished,
	}, logger)

	tasks := service.NewTaskService(logger, st, events)
	repositories := service.NewRepositoryService(logger, st, cfg.ProbeTimeout)
	jobs := service.NewJobService(logger, st, tasks, st, creator, events, cfg.Scheduler.SubmitFailurePolicy)

	return components{
		tasks:        tasks,
		jobs:         jobs,
		repositories: repositories,
		scheduler:    scheduler.New(logger, jobs, gateway, cfg.Scheduler.Interval),
		syncer:       scheduler.NewJobStatusSyncer(logger, jobs, gateway, cfg.Scheduler.SyncInterval, cfg.Scheduler.SyncWorkers),
		gateway:      gateway,
	}
}

func (c components) routes(logger *zap.Logger) *httpRoutes {
	return &httpRoutes{
		logger:       logger.Named("http"),
		tasks:        c.tasks,
		jobs:         c.jobs,
		repositories: c.repositories,
		scheduler:    c.scheduler,
	}
}

func start(ctx context.Context) error {
	cfg := shared.Provide(serviceName, config.Default())

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger = logger.Named(serviceName)

	st, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	var events service.Publisher
	if cfg.NATS.URL != "" {
		queue, err := newEventQueue(ctx, cfg.NATS, logger)
		if err != nil {
			// status events are best effort, keep scheduling without them
			logger.Error("failed to connect to nats, status events are disabled", zap.Error(err))
		} else {
			defer queue.Close()
			events = newEventPublisher(logger, queue, cfg.NATS.Prefix)
		}
	}

	gateway := kubernetes.NewGateway(cfg.Kubernetes, logger)
	c := newComponents(logger, cfg, st, gateway, events)

	if err := (seeder{logger: logger.Named("seed"), fs: afero.NewOsFs(), tasks: c.tasks, repositories: c.repositories}).seed(ctx, cfg.Seed.Path); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	if cfg.Scheduler.Enabled {
		c.scheduler.Start(ctx)
		defer c.scheduler.Stop()

		utils.EnsureRunGoroutine(logger, "job-status-syncer", func() {
			c.syncer.Run(ctx)
		})
	} else {
		logger.Info("scheduler is disabled")
	}

	if err := httpserver.RegisterAndStart(ctx, logger, cfg.Http.Address, cfg.Tracing, c.routes(logger)); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func newStore(cfg config.Config, logger *zap.Logger) (service.Store, error) {
	if cfg.InMemory {
		logger.Warn("using the in-memory store, state is lost on restart")
		return store.NewMemory(), nil
	}

	postgresCfg := postgres.Config{
		Host:    cfg.Postgres.Host,
		Port:    cfg.Postgres.Port,
		User:    cfg.Postgres.Username,
		Passwd:  cfg.Postgres.Password,
		DB:      cfg.Postgres.DB,
		SSLMode: cfg.Postgres.SSLMode,
	}
	orm, err := postgres.NewClient(&postgresCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("new postgres client: %w", err)
	}

	database := db.Database{Orm: orm}
	if err := database.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return database, nil
}

func newEventQueue(ctx context.Context, cfg shared.NATS, logger *zap.Logger) (*jq.JobQueue, error) {
	queue, err := jq.New(cfg.URL, logger)
	if err != nil {
		return nil, err
	}
	subject := ">"
	if cfg.Prefix != "" {
		subject = cfg.Prefix + ".>"
	}
	if err := queue.Stream(ctx, EventsStreamName, "keruta task and job status events", []string{subject}, eventsMaxMsgs); err != nil {
		queue.Close()
		return nil, err
	}
	return queue, nil
}
