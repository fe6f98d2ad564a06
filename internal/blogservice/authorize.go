package blogservice

import (
	"fmt"

	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/userservice"
)

type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionLike    Action = "like"
	ActionComment Action = "comment"
)

// ForbiddenError is returned when an authenticated principal may not perform
// an action on a blog.
type ForbiddenError struct {
	Action Action
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("not authorized to %s this blog: %s", e.Action, e.Reason)
}

func (e *ForbiddenError) Unwrap() error {
	return common.ErrForbidden
}

// Authorize decides whether p may perform action on b. On create the author
// of b is overwritten with the principal.
func Authorize(p *userservice.Principal, b *Blog, action Action) error {
	if p.IsAnonymous() {
		return common.ErrUnauthenticated
	}

	switch action {
	case ActionCreate:
		b.AuthorID = p.ID
		return nil
	case ActionUpdate:
		if b.AuthorID != p.ID {
			return &ForbiddenError{Action: action, Reason: "only the author may edit"}
		}
		return nil
	case ActionDelete:
		if b.AuthorID != p.ID && !p.IsAdmin() {
			return &ForbiddenError{Action: action, Reason: "only the author or an admin may delete"}
		}
		return nil
	case ActionLike, ActionComment:
		return nil
	default:
		return &ForbiddenError{Action: action, Reason: "unknown action"}
	}
}
