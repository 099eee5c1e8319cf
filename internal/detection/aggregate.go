package detection

import (
	"github.com/samber/lo"
)

// Aggregate reduces labels to a name → instance count map and reports
// whether any label name is in targets. Later duplicates overwrite earlier ones.
func Aggregate(labels []Label, targets []string) (map[string]int, bool) {
	detections := make(map[string]int, len(labels))
	for _, l := range labels {
		detections[l.Name] = len(l.Instances)
	}
	return detections, IsLabelFound(labels, targets)
}

// IsLabelFound reports whether any label name is one of targets.
// Matching is exact and case-sensitive.
func IsLabelFound(labels []Label, targets []string) bool {
	return lo.ContainsBy(labels, func(l Label) bool {
		return lo.Contains(targets, l.Name)
	})
}

// MatchingLabels returns the labels whose name is one of targets.
func MatchingLabels(labels []Label, targets []string) []Label {
	return lo.Filter(labels, func(l Label, _ int) bool {
		return lo.Contains(targets, l.Name)
	})
}
