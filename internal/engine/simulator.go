package engine

import (
	"sort"

	"flow-rule-analyzer/internal/model"
)

// Simulator holds a priority-ordered copy of a rule set so that many packets
// can be classified without re-sorting.
type Simulator struct {
	Rules []model.FlowRule
}

// NewSimulator copies rules and sorts the copy by ascending priority. The sort
// is stable, so rules sharing a priority keep their input order. Rules with no
// priority go last.
func NewSimulator(rules []model.FlowRule) *Simulator {
	sorted := make([]model.FlowRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Priority, sorted[j].Priority
		if pi == nil || pj == nil {
			return pi != nil && pj == nil
		}
		return *pi < *pj
	})
	return &Simulator{Rules: sorted}
}

// Simulate returns the first rule, in precedence order, whose match fields
// all equal the packet's, together with the type of its first action.
func (s *Simulator) Simulate(packet *model.Packet) model.SimulationResult {
	fields := packet.Fields()
	for i := range s.Rules {
		rule := &s.Rules[i]
		if !matchesPacket(rule.Match, fields) {
			continue
		}
		matched := *rule
		action := string(model.ActionDrop)
		if len(rule.Actions) > 0 {
			action = string(rule.Actions[0].Type)
		}
		return model.SimulationResult{MatchedRule: &matched, Action: action}
	}
	return model.SimulationResult{Action: model.DefaultAction}
}

// SimulatePacket classifies a single packet against rules.
func SimulatePacket(packet *model.Packet, rules []model.FlowRule) model.SimulationResult {
	return NewSimulator(rules).Simulate(packet)
}

func matchesPacket(match *model.MatchFields, packet map[string]any) bool {
	for key, want := range match.Fields() {
		if got, ok := packet[key]; !ok || got != want {
			return false
		}
	}
	return true
}
