//go:build integration

package database

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JonMunkholm/csvingest/internal/core"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

func startPostgres(t *testing.T) *Store {
	t.Helper()
	skipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "csv",
			"POSTGRES_PASSWORD": "csv",
			"POSTGRES_DB":       "csvingest",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatal(err)
	}

	store, err := Open(ctx, PoolConfig{
		URL:            fmt.Sprintf("postgres://csv:csv@%s:%s/csvingest?sslmode=disable", host, port.Port()),
		MaxConns:       4,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Migrations are idempotent.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return store
}

func TestStore_Postgres(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	if info := store.Info(); info.Driver != "postgres" || info.Host == "" {
		t.Errorf("Info() = %+v", info)
	}

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	a, err := store.CreateBatch(ctx, core.NewBatch{
		FileName: "a.csv", TotalRows: 2, Status: core.StatusProcessing, UploadedAt: base,
	})
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	rows := []core.NewRow{
		{RowNumber: 1, Data: `{"zeta":"1","alpha":"2"}`},
		{RowNumber: 2, Data: `{"zeta":"3","alpha":"4"}`},
	}
	if err := store.CompleteBatch(ctx, a.ID, rows); err != nil {
		t.Fatalf("CompleteBatch() error = %v", err)
	}

	got, err := store.ListRows(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListRows() error = %v", err)
	}
	if len(got) != 2 || string(got[0].Data) != rows[0].Data || got[1].RowNumber != 2 {
		t.Errorf("ListRows() = %+v", got)
	}

	// A duplicate row number aborts the whole transaction.
	b, err := store.CreateBatch(ctx, core.NewBatch{
		FileName: "b.csv", TotalRows: 2, Status: core.StatusProcessing, UploadedAt: base.Add(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.CompleteBatch(ctx, b.ID, []core.NewRow{
		{RowNumber: 1, Data: `{}`},
		{RowNumber: 1, Data: `{}`},
	})
	if err == nil {
		t.Fatal("CompleteBatch() accepted duplicate row numbers")
	}
	if leftover, _ := store.ListRows(ctx, b.ID); len(leftover) != 0 {
		t.Errorf("%d rows left after rollback", len(leftover))
	}
	if err := store.SetBatchStatus(ctx, b.ID, core.StatusFailed); err != nil {
		t.Fatalf("SetBatchStatus() error = %v", err)
	}

	list, err := store.ListBatches(ctx)
	if err != nil {
		t.Fatalf("ListBatches() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID || list[0].Status != core.StatusFailed {
		t.Errorf("ListBatches() = %+v", list)
	}
	if list[1].Status != core.StatusCompleted || !list[1].UploadedAt.Equal(base) {
		t.Errorf("first batch = %+v", list[1])
	}

	if _, err := store.GetBatch(ctx, 9999); !errors.Is(err, core.ErrBatchNotFound) {
		t.Errorf("GetBatch(9999) error = %v, want ErrBatchNotFound", err)
	}
	if err := store.SetBatchStatus(ctx, 9999, core.StatusFailed); !errors.Is(err, core.ErrBatchNotFound) {
		t.Errorf("SetBatchStatus(9999) error = %v, want ErrBatchNotFound", err)
	}
}
