package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarcosLauremiro/miKan-api/internal/database/testutil"
	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
	"github.com/MarcosLauremiro/miKan-api/internal/monitoring/checks"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestEvaluateAllUp(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	m := monitoring.NewHealthManager(time.Second)
	m.Register(checks.Database(db))
	m.Register(checks.Redis(pingFunc(func(context.Context) error { return nil })))

	report := m.Evaluate(context.Background())
	require.True(t, report.Healthy())
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "redis", report.Checks[1].Component)
}

func TestOptionalFailureDegrades(t *testing.T) {
	m := monitoring.NewHealthManager(time.Second)
	m.Register(checks.Redis(pingFunc(func(context.Context) error { return errors.New("connection refused") })))

	report := m.Evaluate(context.Background())
	require.True(t, report.Healthy())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Equal(t, "connection refused", report.Checks[0].Details)
}

func TestCriticalFailureTakesServiceDown(t *testing.T) {
	m := monitoring.NewHealthManager(time.Second)
	m.Register(checks.Redis(pingFunc(func(context.Context) error { return errors.New("down") })))
	m.Register(checks.Broker(pingFunc(func(context.Context) error { return errors.New("closed") })))
	m.Register(checks.Database(nil))

	report := m.Evaluate(context.Background())
	require.False(t, report.Healthy())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "database not configured", report.Checks[2].Details)
}

func TestProbeTimeoutAndPanic(t *testing.T) {
	m := monitoring.NewHealthManager(20 * time.Millisecond)
	m.Register(monitoring.Check{Name: "slow", Critical: true, Probe: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	m.Register(monitoring.Check{Name: "broken", Probe: func(context.Context) error {
		panic("boom")
	}})
	m.Register(monitoring.Check{Name: "ignored"})

	report := m.Evaluate(context.Background())
	require.Len(t, report.Checks, 2)
	require.Equal(t, monitoring.StatusDegraded, report.Checks[0].Status)
	require.Equal(t, monitoring.StatusDegraded, report.Checks[1].Status)
	require.Contains(t, report.Checks[1].Details, "boom")
	require.Equal(t, monitoring.StatusDegraded, report.Status)
}
