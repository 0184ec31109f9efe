package tcpostgres

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresPort = "5432/tcp"

// PostgresContainer is a postgres server used by repository tests.
type PostgresContainer struct {
	testcontainers.Container
	user, password, dbName string
}

type (
	PostgresContainerOption func(c *containerConfig)
	containerConfig         struct {
		req                    testcontainers.ContainerRequest
		user, password, dbName string
	}
)

func WithWaitStrategy(strategies ...wait.Strategy) PostgresContainerOption {
	return func(c *containerConfig) {
		c.req.WaitingFor = wait.ForAll(strategies...).WithDeadline(1 * time.Minute)
	}
}

func WithImage(image string) PostgresContainerOption {
	return func(c *containerConfig) {
		c.req.Image = image
	}
}

func WithName(containerName string) PostgresContainerOption {
	return func(c *containerConfig) {
		c.req.Name = containerName
	}
}

func WithInitialDatabase(user, password, dbName string) PostgresContainerOption {
	return func(c *containerConfig) {
		c.user, c.password, c.dbName = user, password, dbName
	}
}

// SetupPostgres starts (or reuses) a postgres container. The server runs
// without fsync.
func SetupPostgres(ctx context.Context, opts ...PostgresContainerOption) (
	*PostgresContainer, error,
) {
	cfg := &containerConfig{
		req: testcontainers.ContainerRequest{
			Image:        "postgres:16",
			ExposedPorts: []string{postgresPort},
			Cmd:          []string{"postgres", "-c", "fsync=off"},
		},
		user:     "postgres",
		password: "password",
		dbName:   "postgres",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.req.Env = map[string]string{
		"POSTGRES_USER":     cfg.user,
		"POSTGRES_PASSWORD": cfg.password,
		"POSTGRES_DB":       cfg.dbName,
	}

	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: cfg.req,
			Started:          true,
			Reuse:            cfg.req.Name != "",
		})
	if err != nil {
		return nil, err
	}
	return &PostgresContainer{
		Container: container,
		user:      cfg.user,
		password:  cfg.password,
		dbName:    cfg.dbName,
	}, nil
}

// ConnectionString returns the URL of the database on the mapped port.
func (c *PostgresContainer) ConnectionString(ctx context.Context) (string, error) {
	port, err := c.MappedPort(ctx, nat.Port(postgresPort))
	if err != nil {
		return "", err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.user, c.password, host, port.Port(), c.dbName), nil
}
