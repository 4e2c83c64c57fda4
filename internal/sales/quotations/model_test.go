package quotations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextStatusAllowedEdges(t *testing.T) {
	cases := []struct {
		action Action
		from   QuotationStatus
		to     QuotationStatus
	}{
		{ActionSubmit, QuotationStatusDraft, QuotationStatusSubmitted},
		{ActionSubmit, QuotationStatusRevised, QuotationStatusSubmitted},
		{ActionApprove, QuotationStatusSubmitted, QuotationStatusApproved},
		{ActionReject, QuotationStatusSubmitted, QuotationStatusRejected},
		{ActionSend, QuotationStatusApproved, QuotationStatusSent},
		{ActionAttachPO, QuotationStatusSent, QuotationStatusAccepted},
		{ActionAttachPO, QuotationStatusAccepted, QuotationStatusAccepted},
		{ActionRevise, QuotationStatusRejected, QuotationStatusRevised},
		{ActionInvoice, QuotationStatusAccepted, QuotationStatusInvoiced},
	}
	for _, tc := range cases {
		to, ok := NextStatus(tc.action, tc.from)
		require.True(t, ok, "%s from %s should be allowed", tc.action, tc.from)
		require.Equal(t, tc.to, to)
	}
}

func TestNextStatusRejectsEverythingElse(t *testing.T) {
	allowed := map[Action]map[QuotationStatus]bool{
		ActionSubmit:   {QuotationStatusDraft: true, QuotationStatusRevised: true},
		ActionApprove:  {QuotationStatusSubmitted: true},
		ActionReject:   {QuotationStatusSubmitted: true},
		ActionSend:     {QuotationStatusApproved: true},
		ActionAttachPO: {QuotationStatusSent: true, QuotationStatusAccepted: true},
		ActionRevise:   {QuotationStatusRejected: true},
		ActionInvoice:  {QuotationStatusAccepted: true},
	}
	statuses := []QuotationStatus{
		QuotationStatusDraft, QuotationStatusSubmitted, QuotationStatusApproved,
		QuotationStatusRejected, QuotationStatusSent, QuotationStatusAccepted,
		QuotationStatusRevised, QuotationStatusInvoiced,
	}
	actions := []Action{ActionSubmit, ActionApprove, ActionReject, ActionSend, ActionAttachPO, ActionRevise, ActionInvoice}

	for _, action := range actions {
		for _, from := range statuses {
			_, ok := NextStatus(action, from)
			require.Equal(t, allowed[action][from], ok, "%s from %s", action, from)
		}
	}
}

func TestNextStatusTerminalState(t *testing.T) {
	for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionSend, ActionAttachPO, ActionRevise, ActionInvoice} {
		_, ok := NextStatus(action, QuotationStatusInvoiced)
		require.False(t, ok, "invoiced quotations must be immutable, %s leaked", action)
	}
}

func TestEditable(t *testing.T) {
	require.True(t, Editable(QuotationStatusDraft))
	require.True(t, Editable(QuotationStatusRevised))
	for _, s := range []QuotationStatus{
		QuotationStatusSubmitted, QuotationStatusApproved, QuotationStatusRejected,
		QuotationStatusSent, QuotationStatusAccepted, QuotationStatusInvoiced,
	} {
		require.False(t, Editable(s), "status %s must not be editable", s)
	}
}
