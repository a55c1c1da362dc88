package quotations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

func TestAuthorize(t *testing.T) {
	invoiceID := int64(7)
	owned := func(status Status) Quotation {
		return Quotation{Number: "QT/LL-001", Status: status, CreatedBy: staff.UserID}
	}

	tests := []struct {
		name   string
		actor  shared.Actor
		quote  Quotation
		action Action
		want   error
	}{
		{"creator edits draft", staff, owned(StatusDraft), ActionEdit, nil},
		{"admin edits foreign draft", admin, owned(StatusDraft), ActionEdit, nil},
		{"other staff edits draft", other, owned(StatusDraft), ActionEdit, shared.ErrForbidden},
		{"creator edits submitted", staff, owned(StatusSubmitted), ActionEdit, shared.ErrInvalidStatus},
		{"creator submits draft", staff, owned(StatusDraft), ActionSubmit, nil},
		{"creator deletes approved", staff, owned(StatusApproved), ActionDelete, shared.ErrInvalidStatus},
		{"admin approves draft", admin, owned(StatusDraft), ActionApprove, nil},
		{"admin approves submitted", admin, owned(StatusSubmitted), ActionApprove, nil},
		{"admin approves rejected", admin, owned(StatusRejected), ActionApprove, shared.ErrInvalidStatus},
		{"staff approves submitted", staff, owned(StatusSubmitted), ActionApprove, shared.ErrForbidden},
		{"admin rejects approved", admin, owned(StatusApproved), ActionReject, shared.ErrInvalidStatus},
		{"staff converts approved", staff, owned(StatusApproved), ActionConvert, nil},
		{"convert submitted", admin, owned(StatusSubmitted), ActionConvert, shared.ErrInvalidStatus},
		{"convert twice", admin, Quotation{Status: StatusApproved, InvoiceID: &invoiceID}, ActionConvert, shared.ErrConflict},
		{"anonymous", shared.Actor{}, owned(StatusDraft), ActionEdit, shared.ErrUnauthorized},
		{"unknown action", admin, owned(StatusDraft), Action("archive"), shared.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.quote, tt.action)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNextStatus(t *testing.T) {
	next, ok := Next(ActionSubmit)
	assert.True(t, ok)
	assert.Equal(t, StatusSubmitted, next)

	_, ok = Next(ActionEdit)
	assert.False(t, ok)

	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRejected} {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("PAID").Valid())
}
