package app

import (
	"context"
	"strings"

	"github.com/hylla/lanes/internal/domain"
)

// MutationActor identifies who is moving, editing or deleting board items.
type MutationActor struct {
	ActorID   string
	ActorType domain.ActorType
}

type actorKey struct{}

// WithMutationActor attributes every store write made with ctx to actor.
func WithMutationActor(ctx context.Context, actor MutationActor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor.normalized())
}

// MutationActorFromContext reports the attached actor; anonymous actors count as absent.
func MutationActorFromContext(ctx context.Context) (MutationActor, bool) {
	actor, ok := ctx.Value(actorKey{}).(MutationActor)
	if !ok || actor.ActorID == "" {
		return MutationActor{}, false
	}
	return actor, true
}

// Stamp copies the actor onto a ledger event.
func (a MutationActor) Stamp(event domain.ChangeEvent) domain.ChangeEvent {
	a = a.normalized()
	event.ActorID = a.ActorID
	event.ActorType = a.ActorType
	return event
}

func (a MutationActor) normalized() MutationActor {
	return MutationActor{
		ActorID:   strings.TrimSpace(a.ActorID),
		ActorType: domain.NormalizeActorType(a.ActorType),
	}
}
