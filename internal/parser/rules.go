package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"flow-rule-analyzer/internal/model"
)

type ruleSetDocument struct {
	Rules []model.FlowRule `json:"rules"`
}

// ParseRuleSet reads a YAML or JSON document holding either a list of rules
// or an object with a "rules" list.
func ParseRuleSet(r io.Reader) ([]model.FlowRule, error) {
	data, err := toJSON(r)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	if data[0] == '[' {
		var rules []model.FlowRule
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("failed to decode rule list: %w", err)
		}
		return rules, nil
	}

	var doc ruleSetDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}
	return doc.Rules, nil
}

// ParseRule reads a single rule, typically a candidate from the rule editor.
func ParseRule(r io.Reader) (*model.FlowRule, error) {
	data, err := toJSON(r)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("rule document is empty")
	}
	var rule model.FlowRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	return &rule, nil
}

func toJSON(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading rule document: %w", err)
	}
	data, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	return data, nil
}
