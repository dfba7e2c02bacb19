package models

import (
	"context"

	"github.com/mmdatafocus/retail_backend/utils"
)

// Actor is the authenticated principal acting on a request. Populated from
// context by the session middleware; authentication itself happens upstream.
type Actor struct {
	UserId   int
	UserName string
	Role     UserRole
	RiderId  int
}

func ActorFromContext(ctx context.Context) Actor {
	a := Actor{}
	if v, ok := utils.GetUserIdFromContext(ctx); ok {
		a.UserId = v
	}
	if v, ok := utils.GetUserNameFromContext(ctx); ok {
		a.UserName = v
	}
	if v, ok := utils.GetUserRoleFromContext(ctx); ok {
		a.Role = UserRole(v)
	}
	if v, ok := utils.GetRiderIdFromContext(ctx); ok {
		a.RiderId = v
	}
	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); ok && isAdmin && a.Role == "" {
		a.Role = UserRoleAdmin
	}
	return a
}

func (a Actor) IsPrivileged() bool {
	return a.Role.IsPrivileged()
}

func (a Actor) IsRider() bool {
	return a.Role == UserRoleRider
}
