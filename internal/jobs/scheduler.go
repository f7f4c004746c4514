package jobs

import (
	"context"
	"fmt"
	"log/slog"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Scheduler starts background jobs for a resource. Implementations return
// once the job is enqueued, not when it finishes.
type Scheduler interface {
	Precalculate(ctx context.Context, resourceID string) error
	Relink(ctx context.Context, resourceID string) error
}

// TemporalScheduler starts jobs as Temporal workflows.
type TemporalScheduler struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewTemporalScheduler returns a scheduler enqueueing on taskQueue.
func NewTemporalScheduler(c client.Client, taskQueue string, logger *slog.Logger) *TemporalScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemporalScheduler{client: c, taskQueue: taskQueue, logger: logger}
}

// Precalculate starts PrecalculateSuggestionsWorkflow. A run already in
// progress for the same resource is reused.
func (s *TemporalScheduler) Precalculate(ctx context.Context, resourceID string) error {
	return s.start(ctx, "precalculate-"+resourceID, PrecalculateSuggestionsWorkflow, PrecalculateInput{ResourceID: resourceID})
}

// Relink starts RelinkOrphanWorkflow.
func (s *TemporalScheduler) Relink(ctx context.Context, resourceID string) error {
	return s.start(ctx, "relink-"+resourceID, RelinkOrphanWorkflow, RelinkInput{ResourceID: resourceID})
}

func (s *TemporalScheduler) start(ctx context.Context, id string, wf, input any) error {
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                s.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, wf, input)
	if err != nil {
		return fmt.Errorf("starting workflow %s: %w", id, err)
	}
	s.logger.Debug("workflow started", slog.String("id", id), slog.String("queue", s.taskQueue))
	return nil
}

// Noop drops every job. It is used when Temporal is disabled.
type Noop struct {
	Logger *slog.Logger
}

func (n Noop) Precalculate(ctx context.Context, resourceID string) error {
	n.log("precalculate", resourceID)
	return nil
}

func (n Noop) Relink(ctx context.Context, resourceID string) error {
	n.log("relink", resourceID)
	return nil
}

func (n Noop) log(job, id string) {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Debug("background jobs disabled, skipping", slog.String("job", job), slog.String("resource", id))
}

// Register registers the workflows and activities on w.
func Register(w worker.Worker, a *Activities) {
	w.RegisterWorkflow(PrecalculateSuggestionsWorkflow)
	w.RegisterWorkflow(RelinkOrphanWorkflow)

	w.RegisterActivity(a.ListPendingEntriesActivity)
	w.RegisterActivity(a.SuggestForEntryActivity)
	w.RegisterActivity(a.LookupContainerActivity)
	w.RegisterActivity(a.AttachParentActivity)
}
