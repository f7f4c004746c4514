// Package jobs runs background work on Temporal: precalculating external
// suggestions for freshly scanned entries and relinking orphaned resources
// once their container becomes known.
package jobs

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// maxParallelSuggestions bounds concurrent ranking activities per resource.
const maxParallelSuggestions = 4

func activityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeNotFound, errTypeInvalid},
		},
	}
}

// PrecalculateSuggestionsWorkflow ranks and caches external suggestions
// for every pending entry of a resource. Entries whose ranking fails after
// retries are counted and skipped.
func PrecalculateSuggestionsWorkflow(ctx workflow.Context, in PrecalculateInput) (PrecalculateOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions())
	logger := workflow.GetLogger(ctx)

	var pending ListPendingOutput
	if err := workflow.ExecuteActivity(ctx, ListPendingEntriesActivityName, ListPendingInput{ResourceID: in.ResourceID}).Get(ctx, &pending); err != nil {
		return PrecalculateOutput{}, err
	}

	out := PrecalculateOutput{Entries: len(pending.Entries)}
	for i := 0; i < len(pending.Entries); i += maxParallelSuggestions {
		end := i + maxParallelSuggestions
		if end > len(pending.Entries) {
			end = len(pending.Entries)
		}

		futures := make([]workflow.Future, 0, end-i)
		for _, e := range pending.Entries[i:end] {
			futures = append(futures, workflow.ExecuteActivity(ctx, SuggestForEntryActivityName, SuggestInput{PendingEntry: e, K: in.K}))
		}
		for j, f := range futures {
			var res SuggestOutput
			if err := f.Get(ctx, &res); err != nil {
				logger.Warn("suggestion precalculation failed", "entry", pending.Entries[i+j].EntryID, "error", err)
				out.Failed++
				continue
			}
			out.Stored++
		}
	}
	return out, nil
}

// RelinkOrphanWorkflow re-queries Crossref for the container of an orphan
// and links the orphan to it when one is found.
func RelinkOrphanWorkflow(ctx workflow.Context, in RelinkInput) (RelinkOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions())

	var found LookupContainerOutput
	if err := workflow.ExecuteActivity(ctx, LookupContainerActivityName, LookupContainerInput(in)).Get(ctx, &found); err != nil {
		return RelinkOutput{}, err
	}
	if found.Parent == nil {
		return RelinkOutput{Reason: found.Reason}, nil
	}

	var attached AttachOutput
	if err := workflow.ExecuteActivity(ctx, AttachParentActivityName, AttachInput{ResourceID: in.ResourceID, Parent: *found.Parent}).Get(ctx, &attached); err != nil {
		return RelinkOutput{}, err
	}
	return RelinkOutput{Linked: true, ParentID: attached.ParentID}, nil
}
