package domain

import "testing"

func TestTransitionGraphIsForwardOnly(t *testing.T) {
	legal := []struct{ from, to TicketStatus }{
		{TicketStatusNew, TicketStatusTriaged},
		{TicketStatusNew, TicketStatusEscalated},
		{TicketStatusTriaged, TicketStatusComplianceApproved},
		{TicketStatusTriaged, TicketStatusComplianceDenied},
		{TicketStatusComplianceDenied, TicketStatusEscalated},
		{TicketStatusComplianceApproved, TicketStatusResolving},
		{TicketStatusResolving, TicketStatusResolved},
		{TicketStatusResolving, TicketStatusEscalated},
		{TicketStatusResolved, TicketStatusClosed},
		{TicketStatusEscalated, TicketStatusClosed},
	}
	for _, tc := range legal {
		if !IsValidTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to TicketStatus }{
		{TicketStatusTriaged, TicketStatusNew},
		{TicketStatusResolved, TicketStatusResolving},
		{TicketStatusEscalated, TicketStatusResolved},
		{TicketStatusClosed, TicketStatusNew},
		{TicketStatusClosed, TicketStatusEscalated},
		{TicketStatusNew, TicketStatusResolved},
		{TicketStatusComplianceDenied, TicketStatusResolving},
	}
	for _, tc := range illegal {
		if IsValidTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be illegal", tc.from, tc.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []TicketStatus{TicketStatusResolved, TicketStatusEscalated, TicketStatusClosed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TicketStatus{TicketStatusNew, TicketStatusTriaged, TicketStatusResolving} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
