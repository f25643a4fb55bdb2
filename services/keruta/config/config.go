package config

import (
	"time"

	shared "github.com/keruta-io/keruta/pkg/config"
	"github.com/keruta-io/keruta/pkg/kubernetes"
)

type SubmitFailurePolicy string

const (
	// SubmitFailureKeep leaves the task IN_PROGRESS after a failed submission.
	SubmitFailureKeep    SubmitFailurePolicy = "keep"
	SubmitFailurePending SubmitFailurePolicy = "pending"
	SubmitFailureFailed  SubmitFailurePolicy = "failed"
)

type Scheduler struct {
	Enabled             bool                `koanf:"enabled"`
	Interval            time.Duration       `koanf:"interval"`
	SyncInterval        time.Duration       `koanf:"sync_interval"`
	SyncWorkers         int                 `koanf:"sync_workers"`
	SubmitFailurePolicy SubmitFailurePolicy `koanf:"submit_failure_policy"`
}

type Agent struct {
	ReleaseURL     string `koanf:"release_url"`
	APIURL         string `koanf:"api_url"`
	InstallCommand string `koanf:"install_command"`
	ExecuteCommand string `koanf:"execute_command"`
	TokenSecret    string `koanf:"token_secret"`
	TokenKey       string `koanf:"token_key"`
}

type Git struct {
	PVCPrefix    string `koanf:"pvc_prefix"`
	StorageSize  string `koanf:"storage_size"`
	StorageClass string `koanf:"storage_class"`
	MountPath    string `koanf:"mount_path"`
	CloneImage   string `koanf:"clone_image"`
}

type Job struct {
	TTLSecondsAfterFinished int32  `koanf:"ttl_seconds_after_finished"`
	ServiceAccount          string `koanf:"service_account"`
	WorkMountPath           string `koanf:"work_mount_path"`
}

type Seed struct {
	Path string `koanf:"path"`
}

type Config struct {
	Postgres   shared.Postgres   `koanf:"postgres"`
	Http       shared.HttpServer `koanf:"http"`
	NATS       shared.NATS       `koanf:"nats"`
	Tracing    shared.Tracing    `koanf:"tracing"`
	Kubernetes kubernetes.Config `koanf:"kubernetes"`
	Scheduler  Scheduler         `koanf:"scheduler"`
	Agent      Agent             `koanf:"agent"`
	Git        Git               `koanf:"git"`
	Job        Job               `koanf:"job"`
	Seed       Seed              `koanf:"seed"`

	// InMemory swaps postgres for the in-memory store.
	InMemory     bool          `koanf:"in_memory"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

func Default() Config {
	return Config{
		Postgres: shared.Postgres{
			Host:    "localhost",
			Port:    "5432",
			DB:      "keruta",
			SSLMode: "disable",
		},
		Http: shared.HttpServer{Address: "0.0.0.0:8080"},
		NATS: shared.NATS{Prefix: "keruta"},
		Tracing: shared.Tracing{
			ServiceName: "keruta",
		},
		Kubernetes: kubernetes.Config{
			DefaultNamespace: "default",
			DefaultImage:     "keruta-agent:latest",
		},
		Scheduler: Scheduler{
			Enabled:             true,
			Interval:            5 * time.Second,
			SyncInterval:        30 * time.Second,
			SyncWorkers:         4,
			SubmitFailurePolicy: SubmitFailureKeep,
		},
		Agent: Agent{
			APIURL:      "http://keruta-api:8080",
			TokenSecret: "keruta-api-token",
			TokenKey:    "token",
		},
		Git: Git{
			PVCPrefix:   "git-repo",
			StorageSize: "1Gi",
			MountPath:   "/workspace/repo",
			CloneImage:  "alpine/git:latest",
		},
		Job: Job{
			TTLSecondsAfterFinished: 3600,
			WorkMountPath:           "/workspace",
		},
		Seed:         Seed{Path: "/tasks"},
		ProbeTimeout: 10 * time.Second,
	}
}
