package dockertest

import (
	"fmt"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

func GetDockerHost() string {
	return getEnv("DOCKERTEST_HOST", "localhost")
}

type PostgresServer struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

func (p PostgresServer) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.DB)
}

// StartupPostgreSQL runs a throwaway postgres container for the test. The test is skipped
// when no docker daemon is reachable.
func StartupPostgreSQL(t *testing.T) PostgresServer {
	t.Helper()

	require := require.New(t)

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not reachable: %v", err)
	}

	server := PostgresServer{
		Host:     GetDockerHost(),
		User:     "postgres",
		Password: "postgres",
		DB:       "keruta",
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "14-alpine",
		Env: []string{
			"POSTGRES_USER=" + server.User,
			"POSTGRES_PASSWORD=" + server.Password,
			"POSTGRES_DB=" + server.DB,
		},
	})
	require.NoError(err, "start postgres")

	t.Cleanup(func() {
		err := pool.Purge(resource)
		require.NoError(err, "purge resource %s", resource.Container.Name)
	})
	server.Port = resource.GetPort("5432/tcp")

	// the container accepts connections a few seconds after it starts
	err = pool.Retry(func() error {
		return Ping(server)
	})
	require.NoError(err, "wait for postgres connection")

	return server
}
