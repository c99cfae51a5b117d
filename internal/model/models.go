package model

import "time"

type ActionType string // "FORWARD", "DROP", "QUEUE", "MODIFY"

const (
	ActionForward ActionType = "FORWARD"
	ActionDrop    ActionType = "DROP"
	ActionQueue   ActionType = "QUEUE"
	ActionModify  ActionType = "MODIFY"
)

// DefaultAction is reported by simulation when no rule matches a packet.
const DefaultAction = "DEFAULT"

type RuleStatus string

const (
	StatusActive   RuleStatus = "active"
	StatusInactive RuleStatus = "inactive"
	StatusPending  RuleStatus = "pending"
	StatusError    RuleStatus = "error"
)

// Wire names of the match fields, shared by rules and packets.
const (
	FieldSrcIP    = "srcIp"
	FieldDstIP    = "dstIp"
	FieldSrcMAC   = "srcMac"
	FieldDstMAC   = "dstMac"
	FieldSrcPort  = "srcPort"
	FieldDstPort  = "dstPort"
	FieldProtocol = "protocol"
	FieldVlanID   = "vlanId"
	FieldInPort   = "inPort"
)

// MatchFields is a sparse predicate over packet fields. Empty strings and nil
// pointers are wildcards.
type MatchFields struct {
	SrcIP    string `json:"srcIp,omitempty"`
	DstIP    string `json:"dstIp,omitempty"`
	SrcMAC   string `json:"srcMac,omitempty"`
	DstMAC   string `json:"dstMac,omitempty"`
	SrcPort  *int   `json:"srcPort,omitempty"`
	DstPort  *int   `json:"dstPort,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	VlanID   *int   `json:"vlanId,omitempty"`
	InPort   *int   `json:"inPort,omitempty"`
}

// Fields returns the set fields keyed by wire name. Values are either string
// or int, so two values can be compared with ==.
func (m *MatchFields) Fields() map[string]any {
	fields := make(map[string]any)
	if m == nil {
		return fields
	}
	putString := func(key, v string) {
		if v != "" {
			fields[key] = v
		}
	}
	putInt := func(key string, v *int) {
		if v != nil {
			fields[key] = *v
		}
	}
	putString(FieldSrcIP, m.SrcIP)
	putString(FieldDstIP, m.DstIP)
	putString(FieldSrcMAC, m.SrcMAC)
	putString(FieldDstMAC, m.DstMAC)
	putInt(FieldSrcPort, m.SrcPort)
	putInt(FieldDstPort, m.DstPort)
	putString(FieldProtocol, m.Protocol)
	putInt(FieldVlanID, m.VlanID)
	putInt(FieldInPort, m.InPort)
	return fields
}

func (m *MatchFields) IsEmpty() bool {
	return len(m.Fields()) == 0
}

// Packet is a concrete packet header. It shares the match field layout.
type Packet = MatchFields

// Action is one flow instruction. ModifyFields holds the header values a
// MODIFY action rewrites, typed like the match fields they overwrite.
type Action struct {
	Type         ActionType   `json:"type"`
	OutputPort   *int         `json:"outputPort,omitempty"`
	QueueID      *int         `json:"queueId,omitempty"`
	ModifyFields *MatchFields `json:"modifyFields,omitempty"`
}

func Forward(outputPort int) Action {
	return Action{Type: ActionForward, OutputPort: Ptr(outputPort)}
}

func Drop() Action {
	return Action{Type: ActionDrop}
}

func Queue(queueID, outputPort int) Action {
	return Action{Type: ActionQueue, QueueID: Ptr(queueID), OutputPort: Ptr(outputPort)}
}

func Modify(fields MatchFields) Action {
	return Action{Type: ActionModify, ModifyFields: &fields}
}

type Timeout struct {
	HardTimeout *int `json:"hardTimeout,omitempty"`
	IdleTimeout *int `json:"idleTimeout,omitempty"`
}

type Statistics struct {
	PacketCount uint64    `json:"packetCount"`
	ByteCount   uint64    `json:"byteCount"`
	LastMatched time.Time `json:"lastMatched,omitempty"`
}

// FlowRule is a named, prioritized classification rule. A lower Priority value
// takes precedence. An empty ID marks an unsaved draft.
type FlowRule struct {
	ID         string       `json:"id,omitempty"`
	Name       string       `json:"name"`
	Priority   *int         `json:"priority,omitempty"`
	Match      *MatchFields `json:"match,omitempty"`
	Actions    []Action     `json:"actions"`
	Timeout    *Timeout     `json:"timeout,omitempty"`
	Statistics *Statistics  `json:"statistics,omitempty"`
	Status     RuleStatus   `json:"status,omitempty"`
	CreatedAt  time.Time    `json:"createdAt,omitempty"`
	UpdatedAt  time.Time    `json:"updatedAt,omitempty"`
	Version    int          `json:"version,omitempty"`
}

type ConflictType string

const (
	ConflictOverlap    ConflictType = "overlap"
	ConflictShadowing  ConflictType = "shadowing"
	ConflictRedundancy ConflictType = "redundancy"
)

type Severity string

const (
	SeverityMajor Severity = "major"
	SeverityMinor Severity = "minor"
)

type FlowConflict struct {
	Rule1ID     string       `json:"rule1Id"`
	Rule2ID     string       `json:"rule2Id"`
	Type        ConflictType `json:"type"`
	Severity    Severity     `json:"severity"`
	Description string       `json:"description"`
	Suggestion  string       `json:"suggestion"`
}

type FlowValidationResult struct {
	IsValid   bool           `json:"isValid"`
	Errors    []string       `json:"errors"`
	Warnings  []string       `json:"warnings"`
	Conflicts []FlowConflict `json:"conflicts"`
}

type SimulationResult struct {
	MatchedRule *FlowRule `json:"matchedRule"`
	Action      string    `json:"action"`
}

type RuleReport struct {
	RuleID   string               `json:"ruleId"`
	RuleName string               `json:"ruleName"`
	Result   FlowValidationResult `json:"result"`
}

type AuditTotals struct {
	Rules     int `json:"rules"`
	Invalid   int `json:"invalid"`
	Warnings  int `json:"warnings"`
	Conflicts int `json:"conflicts"`
	Major     int `json:"major"`
}

type AuditReport struct {
	RunID       string       `json:"runId"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Results     []RuleReport `json:"results"`
	Clusters    [][]string   `json:"clusters"`
	Totals      AuditTotals  `json:"totals"`
}

func Ptr[T any](v T) *T {
	return &v
}
