package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/database/testutil"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

type recordedEvent struct {
	Name    string
	Payload any
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (b *recordingBus) Publish(_ context.Context, name string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, recordedEvent{Name: name, Payload: payload})
	return nil
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Name)
	}
	return out
}

func (b *recordingBus) last(name string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Name == name {
			return b.events[i].Payload, true
		}
	}
	return nil, false
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func createUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email, Provider: models.ProviderLocal}
	require.NoError(t, db.Create(user).Error)
	return user
}

func ownerCountFor(t *testing.T, db *gorm.DB, workspaceID string) int64 {
	t.Helper()
	count, err := ownerCount(db, workspaceID)
	require.NoError(t, err)
	return count
}

func boolPtr(v bool) *bool { return &v }
