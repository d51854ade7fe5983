package authz

import (
	"context"

	"campusrooms/internal/models"
)

// Oracle answers yes/no permission questions from static policy data:
// a list of approver (administrator) IDs and a blacklist. Faculty submit
// their own requests; approvers resolve them; cancellation is allowed to the
// owner and to approvers.
type Oracle struct {
	approvers   map[int64]bool
	blacklisted map[int64]bool
}

func NewOracle(approvers, blacklist []int64) *Oracle {
	o := &Oracle{
		approvers:   make(map[int64]bool, len(approvers)),
		blacklisted: make(map[int64]bool, len(blacklist)),
	}
	for _, id := range approvers {
		o.approvers[id] = true
	}
	for _, id := range blacklist {
		o.blacklisted[id] = true
	}
	return o
}

// Authorize implements the domain.Authorizer oracle.
func (o *Oracle) Authorize(ctx context.Context, actorID int64, action string, resourceOwnerID int64) bool {
	if actorID == 0 || o.blacklisted[actorID] {
		return false
	}

	switch action {
	case models.ActionSubmit:
		return true
	case models.ActionApprove, models.ActionReject:
		return o.approvers[actorID]
	case models.ActionCancel:
		return actorID == resourceOwnerID || o.approvers[actorID]
	default:
		return false
	}
}

// IsApprover reports whether the actor holds approve permission.
func (o *Oracle) IsApprover(actorID int64) bool {
	return o.approvers[actorID]
}
