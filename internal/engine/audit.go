package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"flow-rule-analyzer/internal/model"
)

type AuditOptions struct {
	// Workers bounds concurrent validations. Zero means runtime.NumCPU().
	Workers int
}

// Audit validates every rule against the whole rule set. Results keep the
// input order. The only error returned is the context's.
func Audit(ctx context.Context, rules []model.FlowRule, opts AuditOptions) (*model.AuditReport, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]model.RuleReport, len(rules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range rules {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rule := &rules[i]
			results[i] = model.RuleReport{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Result:   ValidateFlowRule(rule, rules),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &model.AuditReport{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Results:     results,
		Clusters:    ConflictClusters(rules),
	}
	report.Totals.Rules = len(rules)
	for _, r := range results {
		if !r.Result.IsValid {
			report.Totals.Invalid++
		}
		report.Totals.Warnings += len(r.Result.Warnings)
		report.Totals.Conflicts += len(r.Result.Conflicts)
		for _, c := range r.Result.Conflicts {
			if c.Severity == model.SeverityMajor {
				report.Totals.Major++
			}
		}
	}
	return report, nil
}
