package pgoutcomes

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestJournal_Flow(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "claimbox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/claimbox_test?sslmode=disable"
	var j *Journal
	// порт слушается раньше, чем postgres принимает подключения
	require.Eventually(t, func() bool {
		j, err = New(ctx, dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(j.Close)
	require.NoError(t, j.Ping(ctx))

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	created := outcome.Outcome{
		RunID: "run-1", Op: outcome.OpCreate, Token: "ABC123", ClaimID: "src", NewClaimID: "n1",
		Source: "src", Status: "new", OK: true, At: at,
	}
	require.NoError(t, j.Report(ctx, created))
	require.NoError(t, j.ReportBatch(ctx, []outcome.Outcome{
		{RunID: "run-1", Op: outcome.OpAccept, Token: "n1", ClaimID: "n1", Source: "src", Status: "accepted", OK: true, At: at},
		{RunID: "run-1", Op: outcome.OpCancel, Token: "XYZ", ClaimID: "XYZ", Code: "inappropriate_status", Message: "no", Kind: outcome.KindRemoteAPI, Attempts: 2, At: at},
		{RunID: "run-2", Op: outcome.OpCancel, Token: "other", At: at},
	}))
	require.NoError(t, j.ReportBatch(ctx, nil))

	got, err := j.ListRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, created, got[0])
	require.Equal(t, outcome.OpAccept, got[1].Op)
	require.Equal(t, outcome.KindRemoteAPI, got[2].Kind)
	require.Equal(t, 2, got[2].Attempts)

	none, err := j.ListRun(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, none)
}
