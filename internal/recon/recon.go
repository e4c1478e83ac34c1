// Package recon orchestrates a reconciliation run: fetch both record sets,
// resolve links, classify linked pairs, rank suggestions for unlinked issues,
// and aggregate the result. All I/O happens at the fetch boundary before the
// pure core runs; classification and ranking are fanned out across workers
// into per-index slots, so no locks are needed.
package recon

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/traceability-cli/internal/classify"
	"github.com/sells-group/traceability-cli/internal/link"
	"github.com/sells-group/traceability-cli/internal/match"
	"github.com/sells-group/traceability-cli/internal/model"
	"github.com/sells-group/traceability-cli/internal/normalize"
	"github.com/sells-group/traceability-cli/internal/summary"
	"github.com/sells-group/traceability-cli/pkg/ado"
	"github.com/sells-group/traceability-cli/pkg/jira"
)

// Defaults for the candidate pool scan and worker fan-out.
const (
	DefaultScanDays  = 90
	DefaultScanLimit = 200
	DefaultWorkers   = 5
)

// Config tunes a reconciliation run.
type Config struct {
	JQL          string // issue search query, ignored by file sources
	ScanDays     int    // trailing window for the candidate pool
	ScanLimit    int    // cap on candidate pool size
	Workers      int    // classification/ranking fan-out
	TopAssignees int    // assignee leaderboard size
}

// Source fetches the Jira side. Implemented by jira.Client and jira.FileSource.
type Source interface {
	Search(ctx context.Context, jql string) ([]jira.Issue, error)
}

// Targets fetches the ADO side.
type Targets interface {
	WorkItems(ctx context.Context, ids []string) (map[string]ado.WorkItem, error)
	RecentWorkItems(ctx context.Context, days, limit int) ([]ado.WorkItem, error)
}

// Reconciler runs the reconciliation pipeline.
type Reconciler struct {
	cfg     Config
	source  Source
	targets Targets
	norm    *normalize.Normalizer
	matcher *match.Matcher
}

// New creates a Reconciler. Zero config values fall back to defaults.
func New(cfg Config, source Source, targets Targets, norm *normalize.Normalizer, matcher *match.Matcher) *Reconciler {
	if cfg.ScanDays <= 0 {
		cfg.ScanDays = DefaultScanDays
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = DefaultScanLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Reconciler{
		cfg:     cfg,
		source:  source,
		targets: targets,
		norm:    norm,
		matcher: matcher,
	}
}

// Run executes one reconciliation and returns the immutable result.
// Fetch failures abort the run; data-quality problems never do.
func (r *Reconciler) Run(ctx context.Context) (*model.Result, error) {
	if r.source == nil || r.targets == nil {
		return nil, eris.New("recon: source and targets are required")
	}
	log := zap.L().With(zap.String("component", "recon"))

	rawIssues, err := r.source.Search(ctx, r.cfg.JQL)
	if err != nil {
		return nil, eris.Wrap(err, "recon: fetch issues")
	}
	issues := make([]model.Issue, len(rawIssues))
	for i, raw := range rawIssues {
		issues[i] = issueFromJira(raw)
	}
	log.Info("recon: fetched issues", zap.Int("count", len(issues)))

	ids := link.ReferencedIDs(issues)
	rawItems, err := r.targets.WorkItems(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "recon: fetch linked work items")
	}
	items := make(map[string]model.WorkItem, len(rawItems))
	for id, raw := range rawItems {
		items[id] = workItemFromADO(raw)
	}
	log.Info("recon: resolved work items",
		zap.Int("referenced", len(ids)),
		zap.Int("found", len(items)),
	)

	pairs, unlinked, err := link.Resolve(issues, items)
	if err != nil {
		return nil, err
	}

	r.classifyPairs(ctx, pairs)

	suggestions := r.rankUnlinked(ctx, unlinked)

	result := &model.Result{
		Pairs:       pairs,
		Suggestions: suggestions,
		Summary:     summary.Build(pairs, suggestions, r.cfg.TopAssignees),
	}
	log.Info("recon: run complete",
		zap.Int("total", result.Summary.Total),
		zap.Int("linked", result.Summary.Linked),
		zap.Int("unlinked", result.Summary.Unlinked),
		zap.Int("perfect", result.Summary.PerfectMatches),
		zap.Int("suggestions", result.Summary.SuggestionCount),
	)
	return result, nil
}

// classifyPairs fills in each pair's verdict, fanned out across workers.
// Classification is pure per pair, so slots never contend.
func (r *Reconciler) classifyPairs(ctx context.Context, pairs []model.Pair) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range pairs {
		i := i
		g.Go(func() error {
			pairs[i].Verdict = classify.Classify(pairs[i].Issue, pairs[i].WorkItem, r.norm)
			return nil
		})
	}
	_ = g.Wait()
}

// rankUnlinked builds per-issue candidate suggestions against the recent
// work item pool. A pool fetch failure degrades to no suggestions: it only
// costs hints, never the report.
func (r *Reconciler) rankUnlinked(ctx context.Context, unlinked []model.Issue) []model.Suggestion {
	suggestions := make([]model.Suggestion, len(unlinked))
	for i, issue := range unlinked {
		suggestions[i] = model.Suggestion{Issue: issue}
	}
	if len(unlinked) == 0 {
		return suggestions
	}

	rawPool, err := r.targets.RecentWorkItems(ctx, r.cfg.ScanDays, r.cfg.ScanLimit)
	if err != nil {
		zap.L().Warn("recon: candidate pool fetch failed, skipping suggestions", zap.Error(err))
		return suggestions
	}
	pool := make([]model.WorkItem, len(rawPool))
	for i, raw := range rawPool {
		pool[i] = workItemFromADO(raw)
	}
	zap.L().Info("recon: candidate pool fetched", zap.Int("count", len(pool)))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range unlinked {
		i := i
		g.Go(func() error {
			suggestions[i].Candidates = r.matcher.Rank(unlinked[i], pool)
			return nil
		})
	}
	_ = g.Wait()
	return suggestions
}

// issueFromJira flattens a wire issue into the domain type.
func issueFromJira(raw jira.Issue) model.Issue {
	return model.Issue{
		Key:            raw.Key,
		Summary:        raw.Summary,
		Status:         raw.Status,
		StatusCategory: raw.StatusCategory,
		Priority:       raw.Priority,
		Severity:       raw.Severity,
		Assignee:       raw.Assignee,
		Type:           raw.Type,
		ADOID:          raw.ADORef,
		ADOState:       raw.ADOState,
		Created:        raw.Created,
		Resolved:       raw.Resolved,
	}
}

// workItemFromADO flattens a wire work item into the domain type.
func workItemFromADO(raw ado.WorkItem) model.WorkItem {
	return model.WorkItem{
		ID:            raw.ID,
		Title:         raw.Title,
		State:         raw.State,
		AssignedTo:    raw.AssignedTo,
		Type:          raw.Type,
		Priority:      raw.Priority,
		Severity:      raw.Severity,
		AreaPath:      raw.AreaPath,
		IterationPath: raw.IterationPath,
		Created:       raw.Created,
		Resolved:      raw.Resolved,
		Closed:        raw.Closed,
	}
}
