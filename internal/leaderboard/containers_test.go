package leaderboard

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer runs an image for the duration of the test, these tests
// need docker so they only run when UMS_TEST_CONTAINERS is set.
// The returned endpoint is the host:port of the first exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	if testing.Short() || os.Getenv("UMS_TEST_CONTAINERS") == "" {
		t.Skip("set UMS_TEST_CONTAINERS to run container tests")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started:          true,
		ContainerRequest: req,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		err := container.Terminate(context.Background())
		if err != nil {
			t.Log(err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	return endpoint
}

func TestMongoStore(t *testing.T) {
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(time.Minute),
	})

	store, err := OpenMongo(context.Background(), MongoConfig{
		Uri:        fmt.Sprintf("mongodb://%s", endpoint),
		Database:   "ums_test",
		Collection: "users",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	testStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ums",
			"POSTGRES_PASSWORD": "ums",
			"POSTGRES_DB":       "ums",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	})

	store, err := OpenPostgres(
		context.Background(),
		fmt.Sprintf("postgres://ums:ums@%s/ums?sslmode=disable", endpoint),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	testStore(t, store)
}
