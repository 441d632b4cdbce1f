package restore

import "testing"

func TestBroadcastClassification(t *testing.T) {
	tests := []struct {
		name     string
		expert   bool
		slot     bool
		eligible bool
	}{
		{name: "target/layer0/expert/wi", expert: true, slot: false, eligible: true},
		{name: "target/layer0/expert/wo", expert: true, slot: false, eligible: true},
		{name: "target/layer0/expert/wi/m", expert: true, slot: true, eligible: false},
		{name: "target/layer0/expert/wi/v", expert: true, slot: true, eligible: false},
		{name: "target/layer0/attention/query", expert: false, slot: false, eligible: false},
		{name: "target/layer0/attention/query/m", expert: false, slot: true, eligible: false},
		{name: "target/experts_are_not_expert", expert: false, slot: false, eligible: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParamInfo{Name: tt.name}
			if got := info.IsExpertParam(); got != tt.expert {
				t.Errorf("IsExpertParam() = %v, want %v", got, tt.expert)
			}
			if got := info.IsOptimizerSlot(); got != tt.slot {
				t.Errorf("IsOptimizerSlot() = %v, want %v", got, tt.slot)
			}
			if got := info.BroadcastEligible(); got != tt.eligible {
				t.Errorf("BroadcastEligible() = %v, want %v", got, tt.eligible)
			}
		})
	}
}
