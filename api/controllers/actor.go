package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/hydromart/marketplace-backend/api/middleware"
	internalorders "github.com/hydromart/marketplace-backend/internal/orders"
)

func actorFromContext(ctx context.Context) internalorders.Actor {
	actor := internalorders.Actor{Role: middleware.RoleFromContext(ctx)}
	if id, err := uuid.Parse(middleware.UserIDFromContext(ctx)); err == nil {
		actor.UserID = id
	}
	return actor
}
