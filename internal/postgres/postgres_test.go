package postgres

import (
	"testing"

	"github.com/keruta-io/keruta/internal/dockertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type probe struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func TestValidateConfig(t *testing.T) {
	cfg := &Config{Host: "db", Port: "5432", User: "keruta", DB: "keruta"}
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, defaultMaxOpenConns, cfg.Connection.MaxOpen)
	assert.Contains(t, cfg.DSN(), "sslmode=disable")

	assert.EqualError(t, validateConfig(&Config{Port: "5432"}), "postgres host is empty")
	assert.EqualError(t, validateConfig(&Config{Host: "db", Port: "5432", User: "keruta"}), "postgres db is empty")

	_, err := NewClient(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	server := dockertest.StartupPostgreSQL(t)

	cfg := &Config{
		Host:   server.Host,
		Port:   server.Port,
		User:   server.User,
		Passwd: server.Password,
		DB:     server.DB,
	}
	orm, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err, "new client")

	require.NoError(t, orm.AutoMigrate(&probe{}), "auto migrate")
	require.NoError(t, orm.Create(&probe{ID: "1", Name: "first"}).Error)

	var got probe
	require.NoError(t, orm.First(&got, "id = ?", "1").Error)
	assert.Equal(t, "first", got.Name)
}
