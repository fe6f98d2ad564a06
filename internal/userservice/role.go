package userservice

import "github.com/google/uuid"

func (p *Principal) IsAnonymous() bool {
	return p == nil || p == &AnonymousPrincipal || p.ID == uuid.Nil
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
