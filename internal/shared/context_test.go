package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	_, ok := ActorFromContext(ctx)
	assert.False(t, ok)

	_, ok = ActorFromContext(ContextWithActor(ctx, Actor{UserID: 7, Role: "guest"}))
	assert.False(t, ok, "unknown role")

	actor, ok := ActorFromContext(ContextWithActor(ctx, Actor{UserID: 7, Role: RoleStaff}))
	assert.True(t, ok)
	assert.Equal(t, int64(7), actor.UserID)
	assert.True(t, actor.CanModify(7))
	assert.False(t, actor.CanModify(8))
}

func TestSessionContext(t *testing.T) {
	assert.Nil(t, SessionFromContext(context.Background()))

	sess := &Session{}
	assert.Same(t, sess, SessionFromContext(ContextWithSession(context.Background(), sess)))
}
