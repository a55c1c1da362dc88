package quotations

import "github.com/odyssey-erp/quotedesk/internal/shared"

// Action is an operation that depends on the quotation status.
type Action string

const (
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionConvert Action = "convert"
)

// Authorize checks that actor may perform action on q in its current state.
// Drafts may be edited, submitted or deleted by their creator or an admin.
// Only admins approve or reject, from DRAFT or SUBMITTED. Nothing moves back
// to DRAFT, and an approved quotation converts into at most one invoice.
func Authorize(actor shared.Actor, q Quotation, action Action) error {
	if !actor.Valid() {
		return shared.ErrUnauthorized
	}
	switch action {
	case ActionEdit, ActionDelete, ActionSubmit:
		if !actor.CanModify(q.CreatedBy) {
			return shared.Forbiddenf("only the creator or an administrator can %s quotation %s", action, q.Number)
		}
		if q.Status != StatusDraft {
			return shared.InvalidStatusf("cannot %s quotation %s in status %s", action, q.Number, q.Status)
		}
	case ActionApprove, ActionReject:
		if !actor.IsAdmin() {
			return shared.Forbiddenf("only administrators can %s quotations", action)
		}
		if q.Status != StatusDraft && q.Status != StatusSubmitted {
			return shared.InvalidStatusf("cannot %s quotation %s in status %s", action, q.Number, q.Status)
		}
	case ActionConvert:
		if q.Status != StatusApproved {
			return shared.InvalidStatusf("quotation %s must be approved before invoicing, status is %s", q.Number, q.Status)
		}
		if q.InvoiceID != nil {
			return shared.Conflictf("quotation %s has already been invoiced", q.Number)
		}
	default:
		return shared.Validationf("unknown action %q", action)
	}
	return nil
}

// Next returns the status reached by action.
func Next(action Action) (Status, bool) {
	switch action {
	case ActionSubmit:
		return StatusSubmitted, true
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	}
	return "", false
}

func approvalAction(action Action) shared.ApprovalAction {
	switch action {
	case ActionApprove:
		return shared.ApprovalApprove
	case ActionReject:
		return shared.ApprovalReject
	default:
		return shared.ApprovalSubmit
	}
}
