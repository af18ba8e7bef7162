package engine

import (
	"errors"
	"testing"

	"github.com/efreitasn/sovereignty/internal/domain"
)

func TestTransition(t *testing.T) {
	var (
		unconquered = domain.SovereigntyUnconquered
		contested   = domain.SovereigntyContested
		ruled       = domain.SovereigntyRuled
		protected   = domain.SovereigntyProtected
	)

	tests := []struct {
		from  domain.Sovereignty
		event SovereigntyEvent
		to    domain.Sovereignty
		legal bool
	}{
		{unconquered, SovereigntyOpened, contested, true},
		{ruled, SovereigntyOpened, contested, true},
		{protected, SovereigntyOpened, contested, true},
		{contested, SovereigntyConquered, ruled, true},
		{contested, SovereigntyUnclaimed, unconquered, true},
		{contested, SovereigntyRestored, ruled, true},
		{ruled, SovereigntyProtectionGranted, protected, true},
		{protected, SovereigntyProtectionLapsed, ruled, true},

		{contested, SovereigntyOpened, contested, false},
		{unconquered, SovereigntyConquered, unconquered, false},
		{ruled, SovereigntyConquered, ruled, false},
		{unconquered, SovereigntyProtectionGranted, unconquered, false},
		{ruled, SovereigntyProtectionLapsed, ruled, false},
		{protected, SovereigntyRestored, protected, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"/"+string(tc.event), func(t *testing.T) {
			got, err := Transition(tc.from, tc.event)
			if tc.legal && err != nil {
				t.Fatalf("expected legal transition, got %v", err)
			}
			if !tc.legal && !errors.Is(err, domain.ErrIllegalTransition) {
				t.Fatalf("expected ErrIllegalTransition, got %v", err)
			}
			if got != tc.to {
				t.Errorf("expected %s, got %s", tc.to, got)
			}
		})
	}
}

func TestApplyTransition_LeavesTerritoryOnError(t *testing.T) {
	tr := &domain.Territory{ID: "T1", Sovereignty: domain.SovereigntyContested}

	if err := applyTransition(tr, SovereigntyOpened); err == nil {
		t.Fatal("expected error")
	}
	if tr.Sovereignty != domain.SovereigntyContested {
		t.Errorf("expected unchanged, got %s", tr.Sovereignty)
	}
	if domain.KindOf(applyTransition(tr, SovereigntyOpened)) != domain.KindInvalidState {
		t.Error("expected invalid_state kind")
	}
}
