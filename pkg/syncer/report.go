package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// Item is the outcome for one document or entity in a run.
type Item struct {
	Path   string        `json:"path"`
	Result engine.Result `json:"result"`
}

// Report summarizes a sync run.
type Report struct {
	RunID       string           `json:"run_id"`
	Direction   stores.Direction `json:"direction"`
	Status      stores.RunStatus `json:"status"`
	DryRun      bool             `json:"dry_run"`
	Items       []Item           `json:"items"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Counts returns the number of items, changed items, failed items and issues.
func (r *Report) Counts() (total, changed, failed, issues int) {
	for _, item := range r.Items {
		total++
		switch {
		case item.Result.Failed():
			failed++
		case item.Result.Change.IsChange():
			changed++
		}
		issues += len(item.Result.Issues)
	}
	return total, changed, failed, issues
}

// Item returns the item for an entity, if present.
func (r *Report) Item(kind schema.Kind, alias string) (Item, bool) {
	for _, item := range r.Items {
		if item.Result.Kind == kind && item.Result.Alias == alias {
			return item, true
		}
	}
	return Item{}, false
}

func (r *Report) sortItems() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].Path < r.Items[j].Path
	})
}

// finalStatus derives the run status from the item outcomes.
func (r *Report) finalStatus() (stores.RunStatus, error) {
	total, _, failed, _ := r.Counts()
	switch {
	case failed == 0:
		return stores.RunStatusSucceeded, nil
	case failed == total:
		return stores.RunStatusFailed, fmt.Errorf("all %d entities failed", total)
	default:
		return stores.RunStatusPartial, nil
	}
}

// recorder writes run history to the store. A nil recorder records nothing.
type recorder struct {
	store  stores.Store
	run    *stores.SyncRun
	logger *telemetry.Logger
}

func startRecording(ctx context.Context, store stores.Store, run *stores.SyncRun, logger *telemetry.Logger) *recorder {
	if err := store.CreateSyncRun(ctx, run); err != nil {
		logger.WithError(err).Warn("Failed to record sync run")
		return nil
	}
	return &recorder{store: store, run: run, logger: logger}
}

func (r *recorder) item(ctx context.Context, item Item) {
	if r == nil {
		return
	}

	res := item.Result
	rec := &stores.SyncItem{
		RunID:   r.run.ID,
		Kind:    res.Kind,
		Alias:   res.Alias,
		Change:  string(res.Change),
		Changes: len(res.Changes),
	}
	for _, issue := range res.Issues {
		rec.Issues = append(rec.Issues, issue.Error())
	}
	if res.Err != nil {
		msg := res.Err.Error()
		rec.Error = &msg
	}

	if err := r.store.AppendSyncItem(ctx, rec); err != nil {
		r.logger.WithError(err).WithEntity(string(res.Kind), res.Alias).Warn("Failed to record sync item")
	}
}

func (r *recorder) finish(ctx context.Context, report *Report, runErr error) {
	if r == nil {
		return
	}

	total, changed, failed, issues := report.Counts()
	r.run.Status = report.Status
	r.run.Total = total
	r.run.Changed = changed
	r.run.Failed = failed
	r.run.Issues = issues
	completed := report.CompletedAt
	r.run.CompletedAt = &completed
	if runErr != nil {
		msg := runErr.Error()
		r.run.Error = &msg
	}

	if err := r.store.FinishSyncRun(ctx, r.run); err != nil {
		r.logger.WithError(err).Warn("Failed to finish sync run")
	}
}

// observe feeds one item outcome into metrics and events.
func observe(tel *telemetry.Telemetry, runID string, direction stores.Direction, item Item) {
	res := item.Result
	kind := string(res.Kind)

	tel.Metrics.RecordItem(kind, string(res.Change))

	actions := make(map[engine.ChangeAction]int)
	for _, c := range res.Changes {
		actions[c.Action]++
	}
	for action, n := range actions {
		tel.Metrics.RecordChanges(kind, string(action), n)
	}

	for _, issue := range res.Issues {
		tel.Metrics.RecordIssue(string(issue.Class))
		if issue.Class == engine.ErrorClassUnresolvedReference {
			tel.Metrics.RecordUnresolvedReference(kind)
			_ = tel.Events.PublishReferenceUnresolved(runID, kind, res.Alias, issue.Operation)
		}
	}

	switch {
	case res.Failed():
		reason := "unknown error"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		tel.Metrics.RecordIssue(string(engine.ClassOf(res.Err)))
		_ = tel.Events.PublishEntityFailed(runID, kind, res.Alias, reason)
	case direction == stores.DirectionExport:
		_ = tel.Events.PublishEntityExported(runID, kind, res.Alias, item.Path)
	default:
		_ = tel.Events.PublishEntityImported(runID, kind, res.Alias, string(res.Change), len(res.Changes))
	}
}

// failedResult builds a failed result for a document that never reached the
// engine.
func failedResult(kind schema.Kind, alias string, err error) engine.Result {
	return engine.Result{
		Kind:   kind,
		Alias:  alias,
		Change: engine.ChangeFailed,
		Err:    err,
	}
}
