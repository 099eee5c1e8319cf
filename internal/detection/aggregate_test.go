package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name      string
		labels    []Label
		targets   []string
		wantMap   map[string]int
		wantFound bool
	}{
		{
			name:      "empty input",
			labels:    nil,
			targets:   []string{"cat"},
			wantMap:   map[string]int{},
			wantFound: false,
		},
		{
			name: "counts instances including zero",
			labels: []Label{
				{Name: "Person", Instances: []Instance{{}, {}}},
				{Name: "Outdoors"},
			},
			targets:   []string{"Person"},
			wantMap:   map[string]int{"Person": 2, "Outdoors": 0},
			wantFound: true,
		},
		{
			name:      "case sensitive match",
			labels:    []Label{{Name: "cat"}},
			targets:   []string{"Cat"},
			wantMap:   map[string]int{"cat": 0},
			wantFound: false,
		},
		{
			name:      "empty target set never matches",
			labels:    []Label{{Name: "cat", Instances: []Instance{{}}}},
			targets:   nil,
			wantMap:   map[string]int{"cat": 1},
			wantFound: false,
		},
		{
			name: "duplicate names keep the last count",
			labels: []Label{
				{Name: "Car", Instances: []Instance{{}, {}, {}}},
				{Name: "Car", Instances: []Instance{{}}},
			},
			targets:   []string{"Truck"},
			wantMap:   map[string]int{"Car": 1},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Aggregate(tt.labels, tt.targets)
			assert.Equal(t, tt.wantMap, got)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	labels := []Label{
		{Name: "Dog", Instances: []Instance{{}}},
		{Name: "Cat", Instances: []Instance{{}, {}}},
		{Name: "Grass"},
	}
	targets := []string{"Cat"}

	wantMap, wantFound := Aggregate(labels, targets)

	permutations := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range permutations {
		permuted := []Label{labels[p[0]], labels[p[1]], labels[p[2]]}
		gotMap, gotFound := Aggregate(permuted, targets)
		assert.Equal(t, wantMap, gotMap, "permutation %v", p)
		assert.Equal(t, wantFound, gotFound, "permutation %v", p)

		again, _ := Aggregate(permuted, targets)
		assert.Equal(t, gotMap, again)
	}
}

func TestMatchingLabels(t *testing.T) {
	labels := []Label{{Name: "Cat"}, {Name: "Dog"}, {Name: "Cat"}}
	got := MatchingLabels(labels, []string{"Cat"})
	assert.Len(t, got, 2)
	for _, l := range got {
		assert.Equal(t, "Cat", l.Name)
	}
	assert.Empty(t, MatchingLabels(labels, nil))
}
