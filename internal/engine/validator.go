package engine

import (
	"fmt"
	"strings"

	"flow-rule-analyzer/internal/model"
	"flow-rule-analyzer/internal/utils"
)

const (
	MinPriority = 0
	MaxPriority = 65535
	MaxPort     = 65535
	MinVlanID   = 1
	MaxVlanID   = 4094
	MaxTimeout  = 65535
)

// ValidateFlowRule checks a possibly incomplete rule and, when the rule already
// has an ID, its conflicts with existingRules. Every check runs so the caller
// sees all problems at once. Neither argument is modified.
//
// The port/protocol warning treats the protocol case-insensitively, so "tcp"
// and "TCP" both count as a transport protocol.
func ValidateFlowRule(rule *model.FlowRule, existingRules []model.FlowRule) model.FlowValidationResult {
	result := model.FlowValidationResult{
		Errors:    []string{},
		Warnings:  []string{},
		Conflicts: []model.FlowConflict{},
	}
	if rule == nil {
		rule = &model.FlowRule{}
	}

	if strings.TrimSpace(rule.Name) == "" {
		result.Errors = append(result.Errors, "Rule name is required")
	}

	if rule.Priority == nil || !utils.InRange(*rule.Priority, MinPriority, MaxPriority) {
		result.Errors = append(result.Errors, fmt.Sprintf("Priority must be between %d and %d", MinPriority, MaxPriority))
	}

	if rule.Match.IsEmpty() {
		result.Warnings = append(result.Warnings, "No match fields specified - rule will match all packets")
	}

	if len(rule.Actions) == 0 {
		result.Errors = append(result.Errors, "At least one action is required")
	}

	if rule.Match != nil {
		errs, warns := validateMatchFields(rule.Match)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}

	for i, action := range rule.Actions {
		errs, warns := validateAction(i+1, action)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}

	if rule.Timeout != nil {
		if t := rule.Timeout.HardTimeout; t != nil && !utils.InRange(*t, 0, MaxTimeout) {
			result.Errors = append(result.Errors, fmt.Sprintf("Hard timeout must be between 0 and %d seconds", MaxTimeout))
		}
		if t := rule.Timeout.IdleTimeout; t != nil && !utils.InRange(*t, 0, MaxTimeout) {
			result.Errors = append(result.Errors, fmt.Sprintf("Idle timeout must be between 0 and %d seconds", MaxTimeout))
		}
	}

	if rule.ID != "" {
		result.Conflicts = append(result.Conflicts, DetectConflicts(rule, existingRules)...)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func validateMatchFields(match *model.MatchFields) (errs, warns []string) {
	if match.SrcIP != "" && !utils.IsValidIPv4OrCIDR(match.SrcIP) {
		errs = append(errs, fmt.Sprintf("Invalid source IP address: %s", match.SrcIP))
	}
	if match.DstIP != "" && !utils.IsValidIPv4OrCIDR(match.DstIP) {
		errs = append(errs, fmt.Sprintf("Invalid destination IP address: %s", match.DstIP))
	}

	if match.SrcMAC != "" && !utils.IsValidMAC(match.SrcMAC) {
		errs = append(errs, fmt.Sprintf("Invalid source MAC address: %s", match.SrcMAC))
	}
	if match.DstMAC != "" && !utils.IsValidMAC(match.DstMAC) {
		errs = append(errs, fmt.Sprintf("Invalid destination MAC address: %s", match.DstMAC))
	}

	if p := match.SrcPort; p != nil && !utils.InRange(*p, 0, MaxPort) {
		errs = append(errs, fmt.Sprintf("Source port must be between 0 and %d", MaxPort))
	}
	if p := match.DstPort; p != nil && !utils.InRange(*p, 0, MaxPort) {
		errs = append(errs, fmt.Sprintf("Destination port must be between 0 and %d", MaxPort))
	}

	if v := match.VlanID; v != nil && !utils.InRange(*v, MinVlanID, MaxVlanID) {
		errs = append(errs, fmt.Sprintf("VLAN ID must be between %d and %d", MinVlanID, MaxVlanID))
	}

	// Advisory only: higher-layer tags such as HTTP imply TCP.
	if (match.SrcPort != nil || match.DstPort != nil) && match.Protocol != "" && !isTransportProtocol(match.Protocol) {
		warns = append(warns, fmt.Sprintf("Port fields only apply to TCP/UDP protocols (protocol is %s)", match.Protocol))
	}
	return errs, warns
}

func isTransportProtocol(protocol string) bool {
	return strings.EqualFold(protocol, "TCP") || strings.EqualFold(protocol, "UDP")
}

func validateAction(index int, action model.Action) (errs, warns []string) {
	switch action.Type {
	case model.ActionForward:
		if action.OutputPort == nil {
			errs = append(errs, fmt.Sprintf("Action %d: FORWARD action requires an output port", index))
		}
	case model.ActionQueue:
		if action.QueueID == nil {
			errs = append(errs, fmt.Sprintf("Action %d: QUEUE action requires a queue ID", index))
		}
		if action.OutputPort == nil {
			errs = append(errs, fmt.Sprintf("Action %d: QUEUE action requires an output port", index))
		}
	case model.ActionModify:
		if action.ModifyFields.IsEmpty() {
			warns = append(warns, fmt.Sprintf("Action %d: MODIFY action has no fields to modify", index))
		}
	case model.ActionDrop:
	default:
		errs = append(errs, fmt.Sprintf("Action %d: unknown action type %q", index, action.Type))
	}
	return errs, warns
}
