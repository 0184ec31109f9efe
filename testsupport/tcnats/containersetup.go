//nolint:errcheck // testsetup
package tcnats

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type NatsContainer struct {
	testcontainers.Container
}

// SetupNats starts a NATS server with JetStream enabled.
func SetupNats(ctx context.Context) (*NatsContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10",
		ExposedPorts: []string{"4222/tcp"},
		Cmd:          []string{"-js"},
		Name:         "trackline-nats-test",
		WaitingFor: wait.ForLog("Server is ready").
			WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            true,
		})
	if err != nil {
		return nil, err
	}
	return &NatsContainer{Container: container}, nil
}

// InitTestNats returns a connection to the NATS server given by TESTNATS_URL
// or to a container started on demand.
func InitTestNats() *nats.Conn {
	url := os.Getenv("TESTNATS_URL")
	if url == "" {
		ctx := context.Background()
		container, err := SetupNats(ctx)
		if err != nil {
			log.Fatal(err)
		}
		port, _ := nat.NewPort("tcp", "4222")
		mapped, err := container.MappedPort(ctx, port)
		if err != nil {
			log.Fatal(err)
		}
		host, _ := container.Host(ctx)
		url = fmt.Sprintf("nats://%s:%s", host, mapped.Port())
	}
	conn, err := nats.Connect(url)
	if err != nil {
		log.Fatal(err)
	}
	return conn
}
