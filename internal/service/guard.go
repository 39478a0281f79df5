package service

import (
	"fmt"

	"cashops/internal/apperr"
	"cashops/internal/model"
)

// Guard enforces who may do what to an approval request. Every rule takes the
// acting identity explicitly; nothing is read from ambient session state.
type Guard struct{}

func NewGuard() *Guard { return &Guard{} }

// CanSubmit permits makers and admins to file requests. The maker recorded on
// the request must be the caller; submitting on someone else's behalf is
// refused even for admins.
func (g *Guard) CanSubmit(actor model.Identity, claimedMakerID string) error {
	if actor.Role != model.RoleMaker && actor.Role != model.RoleAdmin {
		return fmt.Errorf("role %s cannot submit requests: %w", actor.Role, apperr.ErrForbidden)
	}
	if claimedMakerID != "" && claimedMakerID != actor.EmployeeID {
		return fmt.Errorf("maker_id %s does not match caller %s: %w", claimedMakerID, actor.EmployeeID, apperr.ErrForbidden)
	}
	return nil
}

// CanDecide permits checkers and admins to approve, reject or request
// clarification. A request can never be decided by its own maker.
func (g *Guard) CanDecide(actor model.Identity, approval *model.ApprovalRequest) error {
	if actor.Role != model.RoleChecker && actor.Role != model.RoleAdmin {
		return fmt.Errorf("role %s cannot decide requests: %w", actor.Role, apperr.ErrForbidden)
	}
	if approval.MakerID == actor.EmployeeID {
		return fmt.Errorf("request %d was filed by %s, self approval is not allowed: %w", approval.ApprovalID, actor.EmployeeID, apperr.ErrForbidden)
	}
	return nil
}

// CanResubmit permits only the original maker to answer a clarification.
func (g *Guard) CanResubmit(actor model.Identity, approval *model.ApprovalRequest) error {
	if actor.Role != model.RoleMaker && actor.Role != model.RoleAdmin {
		return fmt.Errorf("role %s cannot resubmit requests: %w", actor.Role, apperr.ErrForbidden)
	}
	if approval.MakerID != actor.EmployeeID {
		return fmt.Errorf("request %d belongs to %s: %w", approval.ApprovalID, approval.MakerID, apperr.ErrForbidden)
	}
	return nil
}

// CanView is satisfied by every authenticated role, auditors included.
func (g *Guard) CanView(actor model.Identity) error {
	if !model.ValidRole(actor.Role) {
		return fmt.Errorf("role %s is not recognised: %w", actor.Role, apperr.ErrForbidden)
	}
	return nil
}
