package engine

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"flow-rule-analyzer/internal/model"
)

func TestValidateFlowRuleAcceptsWellFormedRule(t *testing.T) {
	rule := &model.FlowRule{
		Name:     "web",
		Priority: model.Ptr(100),
		Match: &model.MatchFields{
			SrcIP:    "10.0.0.0/24",
			DstIP:    "192.168.1.10",
			SrcMAC:   "AA:BB:CC:DD:EE:FF",
			DstPort:  model.Ptr(443),
			Protocol: "TCP",
			VlanID:   model.Ptr(10),
		},
		Actions: []model.Action{model.Queue(2, 3), model.Forward(1)},
		Timeout: &model.Timeout{HardTimeout: model.Ptr(0), IdleTimeout: model.Ptr(300)},
	}

	result := ValidateFlowRule(rule, nil)
	if !result.IsValid {
		t.Fatalf("expected rule to be valid, got errors %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
}

func TestValidateFlowRuleRequiresName(t *testing.T) {
	rule := &model.FlowRule{
		Name:    "   ",
		Match:   &model.MatchFields{DstPort: model.Ptr(80)},
		Actions: []model.Action{model.Forward(1)},
	}

	result := ValidateFlowRule(rule, nil)
	if result.IsValid {
		t.Fatalf("expected rule without a name to be invalid")
	}
	if !containsMessage(result.Errors, "name is required") {
		t.Fatalf("expected a name-required error, got %v", result.Errors)
	}
}

func TestValidateFlowRulePriorityBounds(t *testing.T) {
	tests := []struct {
		name     string
		priority *int
		valid    bool
	}{
		{"missing", nil, false},
		{"negative", model.Ptr(-1), false},
		{"too large", model.Ptr(65536), false},
		{"lowest", model.Ptr(0), true},
		{"highest", model.Ptr(65535), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &model.FlowRule{
				Name:     "r",
				Priority: tt.priority,
				Match:    &model.MatchFields{Protocol: "UDP"},
				Actions:  []model.Action{model.Drop()},
			}
			result := ValidateFlowRule(rule, nil)
			if result.IsValid != tt.valid {
				t.Fatalf("expected valid=%v, got %v (errors %v)", tt.valid, result.IsValid, result.Errors)
			}
		})
	}
}

func TestValidateFlowRuleRequiresActions(t *testing.T) {
	for _, actions := range [][]model.Action{nil, {}} {
		rule := &model.FlowRule{Name: "r", Priority: model.Ptr(1), Match: &model.MatchFields{Protocol: "TCP"}, Actions: actions}
		result := ValidateFlowRule(rule, nil)
		if result.IsValid {
			t.Fatalf("expected rule without actions to be invalid")
		}
		if !containsMessage(result.Errors, "At least one action is required") {
			t.Fatalf("expected actions-required error, got %v", result.Errors)
		}
	}
}

func TestValidateFlowRuleWarnsOnEmptyMatch(t *testing.T) {
	for _, match := range []*model.MatchFields{nil, {}} {
		rule := &model.FlowRule{Name: "catch-all", Priority: model.Ptr(65535), Match: match, Actions: []model.Action{model.Drop()}}
		result := ValidateFlowRule(rule, nil)
		if !result.IsValid {
			t.Fatalf("expected empty match to stay valid, got errors %v", result.Errors)
		}
		if !containsMessage(result.Warnings, "match all packets") {
			t.Fatalf("expected match-all warning, got %v", result.Warnings)
		}
	}
}

func TestValidateFlowRuleMatchFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		match model.MatchFields
		want  string
	}{
		{"bad source ip", model.MatchFields{SrcIP: "192.168.1.256"}, "Invalid source IP address: 192.168.1.256"},
		{"short destination ip", model.MatchFields{DstIP: "192.168.1"}, "Invalid destination IP address: 192.168.1"},
		{"cidr out of range", model.MatchFields{DstIP: "192.168.1.1/33"}, "Invalid destination IP address: 192.168.1.1/33"},
		{"short mac", model.MatchFields{SrcMAC: "AA:BB:CC:DD:EE"}, "Invalid source MAC address"},
		{"non-hex mac", model.MatchFields{DstMAC: "GG:BB:CC:DD:EE:FF"}, "Invalid destination MAC address"},
		{"source port", model.MatchFields{SrcPort: model.Ptr(70000)}, "Source port must be between"},
		{"destination port", model.MatchFields{DstPort: model.Ptr(-1)}, "Destination port must be between"},
		{"vlan zero", model.MatchFields{VlanID: model.Ptr(0)}, "VLAN ID must be between 1 and 4094"},
		{"vlan reserved", model.MatchFields{VlanID: model.Ptr(4095)}, "VLAN ID must be between 1 and 4094"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := tt.match
			rule := &model.FlowRule{Name: "r", Priority: model.Ptr(10), Match: &match, Actions: []model.Action{model.Drop()}}
			result := ValidateFlowRule(rule, nil)
			if result.IsValid {
				t.Fatalf("expected invalid result")
			}
			if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], tt.want) {
				t.Fatalf("expected a single error containing %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateFlowRuleVlanBoundsAreValid(t *testing.T) {
	for _, vlan := range []int{1, 4094} {
		rule := &model.FlowRule{Name: "r", Priority: model.Ptr(10), Match: &model.MatchFields{VlanID: model.Ptr(vlan)}, Actions: []model.Action{model.Drop()}}
		if result := ValidateFlowRule(rule, nil); !result.IsValid {
			t.Fatalf("expected vlan %d to be valid, got %v", vlan, result.Errors)
		}
	}
}

func TestValidateFlowRulePortProtocolConsistency(t *testing.T) {
	tests := []struct {
		name  string
		match model.MatchFields
		warn  bool
	}{
		{"dst TCP", model.MatchFields{DstPort: model.Ptr(80), Protocol: "TCP"}, false},
		{"dst udp", model.MatchFields{DstPort: model.Ptr(80), Protocol: "udp"}, false},
		{"dst no protocol", model.MatchFields{DstPort: model.Ptr(80)}, false},
		{"dst ICMP", model.MatchFields{DstPort: model.Ptr(80), Protocol: "ICMP"}, true},
		{"dst HTTP", model.MatchFields{DstPort: model.Ptr(80), Protocol: "HTTP"}, true},
		{"src TCP", model.MatchFields{SrcPort: model.Ptr(1024), Protocol: "TCP"}, false},
		{"src ICMP", model.MatchFields{SrcPort: model.Ptr(1024), Protocol: "ICMP"}, true},
		{"no ports ICMP", model.MatchFields{Protocol: "ICMP"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := tt.match
			rule := &model.FlowRule{
				Name:     "r",
				Priority: model.Ptr(10),
				Match:    &match,
				Actions:  []model.Action{model.Forward(2)},
			}
			result := ValidateFlowRule(rule, nil)
			if !result.IsValid {
				t.Fatalf("port/protocol mismatch must never block, got %v", result.Errors)
			}
			if got := containsMessage(result.Warnings, "only apply to TCP/UDP"); got != tt.warn {
				t.Fatalf("expected warning=%v, got warnings %v", tt.warn, result.Warnings)
			}
		})
	}
}

func TestValidateFlowRuleActions(t *testing.T) {
	tests := []struct {
		name     string
		actions  []model.Action
		errors   []string
		warnings []string
	}{
		{
			name:    "forward without port",
			actions: []model.Action{{Type: model.ActionForward}},
			errors:  []string{"Action 1: FORWARD action requires an output port"},
		},
		{
			name:    "queue without anything",
			actions: []model.Action{model.Drop(), {Type: model.ActionQueue}},
			errors: []string{
				"Action 2: QUEUE action requires a queue ID",
				"Action 2: QUEUE action requires an output port",
			},
		},
		{
			name:    "queue without port",
			actions: []model.Action{{Type: model.ActionQueue, QueueID: model.Ptr(1)}},
			errors:  []string{"Action 1: QUEUE action requires an output port"},
		},
		{
			name:     "modify without fields",
			actions:  []model.Action{{Type: model.ActionModify}, model.Forward(1)},
			warnings: []string{"Action 1: MODIFY action has no fields to modify"},
		},
		{
			name:     "modify with empty fields",
			actions:  []model.Action{model.Modify(model.MatchFields{}), model.Forward(1)},
			warnings: []string{"Action 1: MODIFY action has no fields to modify"},
		},
		{
			name:    "modify with fields",
			actions: []model.Action{model.Modify(model.MatchFields{VlanID: model.Ptr(20)}), model.Forward(1)},
		},
		{
			name:    "unknown type",
			actions: []model.Action{{Type: "MIRROR"}},
			errors:  []string{`Action 1: unknown action type "MIRROR"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &model.FlowRule{Name: "r", Priority: model.Ptr(5), Match: &model.MatchFields{Protocol: "TCP"}, Actions: tt.actions}
			result := ValidateFlowRule(rule, nil)
			if diff := cmp.Diff(emptyIfNil(tt.errors), result.Errors); diff != "" {
				t.Errorf("errors mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(emptyIfNil(tt.warnings), result.Warnings); diff != "" {
				t.Errorf("warnings mismatch (-want +got):\n%s", diff)
			}
			if result.IsValid != (len(tt.errors) == 0) {
				t.Errorf("expected valid=%v, got %v", len(tt.errors) == 0, result.IsValid)
			}
		})
	}
}

func TestValidateFlowRuleTimeouts(t *testing.T) {
	rule := &model.FlowRule{
		Name:     "r",
		Priority: model.Ptr(5),
		Match:    &model.MatchFields{Protocol: "TCP"},
		Actions:  []model.Action{model.Drop()},
		Timeout:  &model.Timeout{HardTimeout: model.Ptr(-5), IdleTimeout: model.Ptr(70000)},
	}

	result := ValidateFlowRule(rule, nil)
	want := []string{
		"Hard timeout must be between 0 and 65535 seconds",
		"Idle timeout must be between 0 and 65535 seconds",
	}
	if diff := cmp.Diff(want, result.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateFlowRuleCollectsEveryProblem(t *testing.T) {
	rule := &model.FlowRule{
		Match: &model.MatchFields{SrcIP: "300.1.1.1", DstMAC: "zz", VlanID: model.Ptr(0)},
	}

	result := ValidateFlowRule(rule, nil)
	if len(result.Errors) != 6 {
		t.Fatalf("expected 6 errors (name, priority, actions, ip, mac, vlan), got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestValidateFlowRuleSkipsConflictsForDrafts(t *testing.T) {
	existing := []model.FlowRule{{
		ID: "r1", Name: "existing", Priority: model.Ptr(100),
		Match: &model.MatchFields{DstPort: model.Ptr(80)}, Actions: []model.Action{model.Forward(1)},
	}}
	draft := &model.FlowRule{
		Name: "draft", Priority: model.Ptr(100),
		Match: &model.MatchFields{DstPort: model.Ptr(80)}, Actions: []model.Action{model.Forward(1)},
	}

	result := ValidateFlowRule(draft, existing)
	if len(result.Conflicts) != 0 {
		t.Fatalf("expected drafts to skip conflict detection, got %v", result.Conflicts)
	}
}

func TestValidateFlowRuleIsIdempotent(t *testing.T) {
	rules := []model.FlowRule{
		{ID: "a", Name: "a", Priority: model.Ptr(10), Match: &model.MatchFields{Protocol: "TCP"}, Actions: []model.Action{model.Forward(1)}},
		{ID: "b", Name: "b", Priority: model.Ptr(10), Match: &model.MatchFields{Protocol: "TCP"}, Actions: []model.Action{model.Forward(1)}},
		{ID: "c", Name: "", Priority: model.Ptr(20), Match: &model.MatchFields{DstPort: model.Ptr(22), Protocol: "ICMP"}, Actions: []model.Action{{Type: model.ActionModify}}},
	}

	for i := range rules {
		first := ValidateFlowRule(&rules[i], rules)
		second := ValidateFlowRule(&rules[i], rules)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("rule %s: results differ between calls (-first +second):\n%s", rules[i].ID, diff)
		}
	}
}

func TestValidateFlowRuleHandlesNilRule(t *testing.T) {
	result := ValidateFlowRule(nil, nil)
	if result.IsValid {
		t.Fatalf("expected nil rule to be invalid")
	}
}

func containsMessage(messages []string, substr string) bool {
	for _, m := range messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
