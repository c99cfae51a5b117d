package engine

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"flow-rule-analyzer/internal/model"
)

// DetectConflicts compares rule against every other rule in existingRules.
//
// Shadowing is only reported when rule takes precedence over the existing
// rule (strictly lower priority value). The converse is not reported, so
// running the check from the other rule's side gives a different answer.
// A nil rule has no conflicts.
func DetectConflicts(rule *model.FlowRule, existingRules []model.FlowRule) []model.FlowConflict {
	if rule == nil {
		return nil
	}
	var conflicts []model.FlowConflict
	for i := range existingRules {
		existing := &existingRules[i]
		if existing.ID == rule.ID {
			continue
		}

		if matchesOverlap(rule.Match, existing.Match) && rule.Priority != nil && existing.Priority != nil {
			switch {
			case *rule.Priority == *existing.Priority:
				conflicts = append(conflicts, model.FlowConflict{
					Rule1ID:     rule.ID,
					Rule2ID:     existing.ID,
					Type:        model.ConflictOverlap,
					Severity:    model.SeverityMajor,
					Description: fmt.Sprintf("Rule overlaps with %q at the same priority (%d); precedence is undefined", existing.Name, *existing.Priority),
					Suggestion:  "Give one of the rules a different priority or make the match fields more specific",
				})
			case *rule.Priority < *existing.Priority:
				conflicts = append(conflicts, model.FlowConflict{
					Rule1ID:     rule.ID,
					Rule2ID:     existing.ID,
					Type:        model.ConflictShadowing,
					Severity:    model.SeverityMinor,
					Description: fmt.Sprintf("Rule shadows %q (priority %d) for overlapping traffic", existing.Name, *existing.Priority),
					Suggestion:  "Check that the shadowed rule is still reachable, or narrow this rule's match fields",
				})
			}
		}

		if isRedundant(rule, existing) {
			conflicts = append(conflicts, model.FlowConflict{
				Rule1ID:     rule.ID,
				Rule2ID:     existing.ID,
				Type:        model.ConflictRedundancy,
				Severity:    model.SeverityMinor,
				Description: fmt.Sprintf("Rule is redundant with %q: identical match fields and actions", existing.Name),
				Suggestion:  "Remove one of the duplicate rules",
			})
		}
	}
	return conflicts
}

// matchesOverlap reports whether two matches can select the same packet. A
// field set on both sides with different values rules that out; a field set
// on one side only is a wildcard on the other.
func matchesOverlap(a, b *model.MatchFields) bool {
	fa, fb := a.Fields(), b.Fields()
	for key, va := range fa {
		if vb, ok := fb[key]; ok && va != vb {
			return false
		}
	}
	return true
}

func isRedundant(a, b *model.FlowRule) bool {
	return cmp.Equal(a.Match.Fields(), b.Match.Fields()) &&
		cmp.Equal(a.Actions, b.Actions, cmpopts.EquateEmpty())
}
