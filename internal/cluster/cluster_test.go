package cluster

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

// axisVectors returns n unit vectors spread over dims axes, so vectors
// sharing an axis are identical and vectors on different axes orthogonal.
func axisVectors(n, dims, perAxis int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range n {
		v := make([]float32, dims)
		v[(i/perAxis)%dims] = 1
		vecs[i] = v
	}
	return vecs
}

func TestGroup_BoundedSize(t *testing.T) {
	vecs := axisVectors(40, 8, 5)
	groups, err := Group(vecs, Config{TargetSize: 5, MinGroup: 3})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}

	seen := make(map[int]bool)
	for _, g := range groups {
		if len(g) == 0 {
			t.Fatal("empty group")
		}
		if len(g) > 5 {
			t.Errorf("group size %d exceeds target 5", len(g))
		}
		for _, idx := range g {
			if seen[idx] {
				t.Errorf("index %d assigned twice", idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != 40 {
		t.Errorf("assigned %d of 40 vectors", len(seen))
	}
}

func TestGroup_SimilarVectorsLandTogether(t *testing.T) {
	// Two tight bundles on different axes; each should form its own group.
	vecs := [][]float32{
		{1, 0, 0}, {0.99, 0.01, 0},
		{0, 1, 0}, {0.01, 0.99, 0},
	}
	groups, err := Group(vecs, Config{TargetSize: 2, MinGroup: 1})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("want 2 groups, got %d: %v", len(groups), groups)
	}
	if !(groups[0][0] == 0 && groups[0][1] == 1) {
		t.Errorf("first group should pair the x-axis bundle, got %v", groups[0])
	}
	if !(groups[1][0] == 2 && groups[1][1] == 3) {
		t.Errorf("second group should pair the y-axis bundle, got %v", groups[1])
	}
}

func TestGroup_SmallInputSingleGroup(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		vecs := axisVectors(n, 4, 1)
		groups, err := Group(vecs, Config{TargetSize: 5, MinGroup: 3})
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(groups) != 1 {
			t.Errorf("n=%d: want single final group, got %d groups", n, len(groups))
		}
		if len(groups[0]) != n {
			t.Errorf("n=%d: final group has %d members", n, len(groups[0]))
		}
	}
}

// 12 vectors, target 5, min 3: greedy fills 5+5, the remaining 2 fall below
// the threshold and become one final group of 2 - three groups total.
func TestGroup_TwelveChunksThreeGroups(t *testing.T) {
	vecs := axisVectors(12, 4, 5)
	groups, err := Group(vecs, Config{TargetSize: 5, MinGroup: 3})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("want 3 groups, got %d", len(groups))
	}
	wantSizes := []int{5, 5, 2}
	for i, g := range groups {
		if len(g) != wantSizes[i] {
			t.Errorf("group %d: size %d, want %d", i, len(g), wantSizes[i])
		}
	}
}

func TestGroup_Deterministic(t *testing.T) {
	vecs := axisVectors(23, 6, 4)
	cfg := Config{TargetSize: 6, MinGroup: 3}

	first, err := Group(vecs, cfg)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	second, err := Group(vecs, cfg)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("group counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if len(first[i]) != len(second[i]) {
			t.Fatalf("group %d sizes differ", i)
		}
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("group %d member %d differs: %d vs %d", i, j, first[i][j], second[i][j])
			}
		}
	}
}

func TestGroup_Errors(t *testing.T) {
	tests := []struct {
		name string
		vecs [][]float32
		cfg  Config
	}{
		{"empty input", nil, Config{TargetSize: 5, MinGroup: 3}},
		{"dimension mismatch", [][]float32{{1, 0}, {1, 0, 0}}, Config{TargetSize: 5, MinGroup: 3}},
		{"empty vector", [][]float32{{}}, Config{TargetSize: 5, MinGroup: 3}},
		{"target too small", [][]float32{{1}}, Config{TargetSize: 1, MinGroup: 1}},
		{"min group zero", [][]float32{{1}}, Config{TargetSize: 5, MinGroup: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Group(tt.vecs, tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
