package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u1", Email: "a@x.com", IPAddress: "10.0.0.1"})

	actor, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "u1", actor.UserID)
	require.Equal(t, "10.0.0.1", actor.IPAddress)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}

func TestWithActorAcceptsNilContext(t *testing.T) {
	//nolint:staticcheck
	ctx := WithActor(nil, Actor{UserID: "u2"})
	actor, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "u2", actor.UserID)
}
