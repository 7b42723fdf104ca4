package fusion

import (
	"math"
	"testing"
)

func ids(results []RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}

	return out
}

func TestFuse_Empty(t *testing.T) {
	if got := Fuse(nil, nil); got != nil {
		t.Errorf("Fuse(nil) = %v, want nil", got)
	}

	// Channels present but all empty: no ids are invented.
	got := Fuse([][]RankedResult{{}, {}, {}}, nil)
	if len(got) != 0 {
		t.Errorf("fusing empty channels produced %d results, want 0", len(got))
	}
}

func TestFuse_SingleSharedID(t *testing.T) {
	channels := [][]RankedResult{
		{{ID: "x"}},
		{{ID: "x"}},
		{{ID: "x"}},
	}

	got := Fuse(channels, []float64{0.4, 0.3, 0.3})
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1 deduplicated entry", len(got))
	}

	// Rank 0 in every channel: each contributes weight/61, summing to 1/61.
	want := 1.0 / 61.0
	if math.Abs(got[0].Score-want) > 1e-12 {
		t.Errorf("fused score = %v, want %v", got[0].Score, want)
	}
}

func TestFuse_RankOrderWins(t *testing.T) {
	channels := [][]RankedResult{
		{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		{{ID: "a"}, {ID: "c"}, {ID: "b"}},
	}

	got := Fuse(channels, nil)

	want := []string{"a", "b", "c"}
	for i, id := range ids(got) {
		if id != want[i] {
			t.Fatalf("order = %v, want %v", ids(got), want)
		}
	}
}

func TestFuse_WeightsShiftRanking(t *testing.T) {
	// b leads the heavy channel, a leads the light one.
	channels := [][]RankedResult{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "b"}, {ID: "a"}},
	}

	got := Fuse(channels, []float64{0.1, 0.9})
	if got[0].ID != "b" {
		t.Errorf("top = %q, want b to win under the heavy channel", got[0].ID)
	}
}

func TestFuse_ScoresNonIncreasing(t *testing.T) {
	channels := [][]RankedResult{
		{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		{{ID: "c"}, {ID: "e"}},
		{{ID: "b"}},
	}

	got := Fuse(channels, []float64{0.5, 0.25, 0.25})

	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatal("fused scores must be non-increasing")
		}
	}

	if len(got) != 5 {
		t.Errorf("got %d results, want 5 distinct ids", len(got))
	}
}

func TestFuse_FirstSeenPayloadKept(t *testing.T) {
	channels := [][]RankedResult{
		{{ID: "x", Payload: "first"}},
		{{ID: "x", Payload: "second"}},
	}

	got := Fuse(channels, nil)
	if got[0].Payload != "first" {
		t.Errorf("payload = %v, want the first-seen value", got[0].Payload)
	}
}

func TestFuse_TieBreakByFirstSeen(t *testing.T) {
	// Two ids with identical contributions in mirrored positions.
	channels := [][]RankedResult{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "b"}, {ID: "a"}},
	}

	got := Fuse(channels, nil)
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("tie order = %v, want first-seen order [a b]", ids(got))
	}
}

func TestNormalizeWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		n       int
		want    []float64
	}{
		{name: "nil means equal", weights: nil, n: 2, want: []float64{0.5, 0.5}},
		{name: "length mismatch means equal", weights: []float64{1}, n: 2, want: []float64{0.5, 0.5}},
		{name: "zero sum means equal", weights: []float64{0, 0}, n: 2, want: []float64{0.5, 0.5}},
		{name: "rescaled to unit sum", weights: []float64{2, 6}, n: 2, want: []float64{0.25, 0.75}},
		{name: "already normalized", weights: []float64{0.4, 0.3, 0.3}, n: 3, want: []float64{0.4, 0.3, 0.3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeWeights(tc.weights, tc.n)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if math.Abs(got[i]-tc.want[i]) > 1e-12 {
					t.Errorf("weight[%d] = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}
