package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversToNamedAndWildcardSubscribers(t *testing.T) {
	bus := NewMemoryBus()

	var mu sync.Mutex
	var received []MemberLeft
	var wildcard int32

	bus.Subscribe(WorkspaceMemberLeft, func(_ context.Context, evt Event) error {
		var payload MemberLeft
		if err := evt.Decode(&payload); err != nil {
			return err
		}
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		return nil
	})
	bus.Subscribe(Wildcard, func(context.Context, Event) error {
		atomic.AddInt32(&wildcard, 1)
		return nil
	})

	err := bus.Publish(context.Background(), WorkspaceMemberLeft, MemberLeft{
		WorkspaceID:   "ws-1",
		WorkspaceName: "Design",
		MemberEmail:   "ana@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ProjectCreated, ProjectCreatedPayload{ProjectID: "p-1"}))
	bus.Wait()

	require.Len(t, received, 1)
	require.Equal(t, "ana@example.com", received[0].MemberEmail)
	require.Equal(t, int32(2), atomic.LoadInt32(&wildcard))
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	var calls int32

	unsubscribe := bus.Subscribe(ListCreated, func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), ListCreated, ListChanged{ListID: "l-1"}))
	bus.Wait()
	unsubscribe()
	unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), ListCreated, ListChanged{ListID: "l-2"}))
	bus.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMemoryBusPublishDoesNotWaitForHandlers(t *testing.T) {
	bus := NewMemoryBus()
	release := make(chan struct{})
	started := make(chan struct{})

	bus.Subscribe(AuthRegistered, func(context.Context, Event) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- bus.Publish(context.Background(), AuthRegistered, UserRegistered{UserID: "u-1"})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow handler")
	}

	<-started
	close(release)
	bus.Wait()
}

func TestMemoryBusHandlerContextOutlivesPublisher(t *testing.T) {
	bus := NewMemoryBus()
	var handlerErr error

	bus.Subscribe(ListDeleted, func(ctx context.Context, _ Event) error {
		handlerErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, bus.Publish(ctx, ListDeleted, ListChanged{ListID: "l-1"}))
	bus.Wait()

	require.NoError(t, handlerErr)
}

func TestMemoryBusSurvivesFailingAndPanickingHandlers(t *testing.T) {
	bus := NewMemoryBus()
	var ok int32

	bus.Subscribe(WorkspaceInvite, func(context.Context, Event) error {
		panic("boom")
	})
	bus.Subscribe(WorkspaceInvite, func(context.Context, Event) error {
		return errors.New("smtp down")
	})
	bus.Subscribe(WorkspaceInvite, func(context.Context, Event) error {
		atomic.AddInt32(&ok, 1)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), WorkspaceInvite, MemberInvited{Email: "a@b.c"}))
	bus.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&ok))
}

func TestMemoryBusHandlerTimeout(t *testing.T) {
	bus := NewMemoryBus(WithHandlerTimeout(20 * time.Millisecond))
	var deadlineHit int32

	bus.Subscribe(ProjectCreated, func(ctx context.Context, _ Event) error {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			atomic.StoreInt32(&deadlineHit, 1)
		}
		return ctx.Err()
	})

	require.NoError(t, bus.Publish(context.Background(), ProjectCreated, ProjectCreatedPayload{}))
	bus.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&deadlineHit))
}

func TestMemoryBusStampsEventsWithClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := NewMemoryBus(WithClock(func() time.Time { return fixed }))

	var got Event
	bus.Subscribe(AuthRegistered, func(_ context.Context, evt Event) error {
		got = evt
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), AuthRegistered, UserRegistered{UserID: "u-1"}))
	bus.Wait()

	require.Equal(t, fixed, got.OccurredAt)
	require.NotEmpty(t, got.ID)
	require.Equal(t, AuthRegistered, got.Name)
}

func TestMemoryBusCloseRejectsNewEvents(t *testing.T) {
	bus := NewMemoryBus()
	var calls int32
	bus.Subscribe(ListCreated, func(context.Context, Event) error {
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), ListCreated, ListChanged{}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Close(ctx))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	err := bus.Publish(context.Background(), ListCreated, ListChanged{})
	require.ErrorIs(t, err, ErrBusClosed)
}

func TestNewEventRequiresName(t *testing.T) {
	_, err := NewEvent("", struct{}{}, time.Now())
	require.Error(t, err)

	_, err = NewEvent("x", make(chan int), time.Now())
	require.Error(t, err)
}

func TestEventDecodeWithoutPayload(t *testing.T) {
	err := Event{Name: "empty"}.Decode(&struct{}{})
	require.Error(t, err)
}
