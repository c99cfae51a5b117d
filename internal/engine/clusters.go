package engine

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"flow-rule-analyzer/internal/model"
)

// ConflictClusters groups rules that are linked, directly or transitively, by
// at least one conflict. Only rules with an ID take part. Each cluster is
// sorted by rule ID and clusters are ordered by their first member.
func ConflictClusters(rules []model.FlowRule) [][]string {
	g := simple.NewUndirectedGraph()
	nodeIDs := make(map[string]int64)
	ruleIDs := make(map[int64]string)
	for _, rule := range rules {
		if rule.ID == "" {
			continue
		}
		if _, ok := nodeIDs[rule.ID]; ok {
			continue
		}
		n := g.NewNode()
		g.AddNode(n)
		nodeIDs[rule.ID] = n.ID()
		ruleIDs[n.ID()] = rule.ID
	}

	for i := range rules {
		if rules[i].ID == "" {
			continue
		}
		for _, c := range DetectConflicts(&rules[i], rules) {
			from, okFrom := nodeIDs[c.Rule1ID]
			to, okTo := nodeIDs[c.Rule2ID]
			if !okFrom || !okTo || from == to {
				continue
			}
			g.SetEdge(g.NewEdge(g.Node(from), g.Node(to)))
		}
	}

	var clusters [][]string
	for _, component := range topo.ConnectedComponents(g) {
		if len(component) < 2 {
			continue
		}
		members := make([]string, 0, len(component))
		for _, n := range component {
			members = append(members, ruleIDs[n.ID()])
		}
		sort.Strings(members)
		clusters = append(clusters, members)
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}
