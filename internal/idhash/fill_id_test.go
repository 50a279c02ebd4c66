package idhash

import (
	"testing"
)

func TestComputeFillID(t *testing.T) {
	tests := []struct {
		name string
		mint string
		seq  int64
	}{
		{"first fill", "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", 1},
		{"later fill", "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", 4812},
		{"other mint", "So11111111111111111111111111111111111111112", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFillID(tt.mint, tt.seq)

			if len(got) != 64 {
				t.Errorf("ComputeFillID() length = %d, want 64", len(got))
			}

			// Verify determinism: same inputs should produce same output
			if got2 := ComputeFillID(tt.mint, tt.seq); got != got2 {
				t.Errorf("ComputeFillID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeFillID_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for _, mint := range []string{"mintA", "mintB"} {
		for seq := int64(1); seq <= 50; seq++ {
			id := ComputeFillID(mint, seq)
			if seen[id] {
				t.Fatalf("collision for %s/%d", mint, seq)
			}
			seen[id] = true
		}
	}
}

func TestComputeFillID_SeparatorMatters(t *testing.T) {
	// "mint1" + seq 23 must not collide with "mint12" + seq 3
	if ComputeFillID("mint1", 23) == ComputeFillID("mint12", 3) {
		t.Error("expected distinct ids")
	}
}
