package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAMQPBusHandleDeliveryDispatchesLocally(t *testing.T) {
	local := NewMemoryBus()
	bus := &AMQPBus{local: local, now: time.Now}

	var got InvitationAnswered
	bus.Subscribe(WorkspaceInvitationAccepted, func(_ context.Context, evt Event) error {
		return evt.Decode(&got)
	})

	evt, err := NewEvent(WorkspaceInvitationAccepted, InvitationAnswered{
		WorkspaceID: "ws-1",
		MemberEmail: "bia@example.com",
		InvitedByID: "u-owner",
	}, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(evt)
	require.NoError(t, err)

	require.NoError(t, bus.handleDelivery(context.Background(), body))
	local.Wait()

	require.Equal(t, "bia@example.com", got.MemberEmail)
	require.Equal(t, "u-owner", got.InvitedByID)
}

func TestAMQPBusHandleDeliveryRejectsGarbage(t *testing.T) {
	bus := &AMQPBus{local: NewMemoryBus(), now: time.Now}

	require.Error(t, bus.handleDelivery(context.Background(), []byte("not-json")))
	require.Error(t, bus.handleDelivery(context.Background(), []byte(`{"id":"1","data":{}}`)))
}

func TestNewAMQPBusRequiresURL(t *testing.T) {
	_, err := NewAMQPBus(context.Background(), AMQPConfig{}, nil)
	require.Error(t, err)
}
