package tempora

import (
	"context"
)

// TemporalMerger is the external entry point for the temporal-merge
// planner and executor.
type TemporalMerger interface {
	// Merge plans and executes a merge of req.SourceTable into req.TargetTable
	// under req.Mode. It begins and commits its own transaction; it does not
	// run inside a transaction the caller holds open.
	Merge(ctx context.Context, req *MergeRequest) (*MergeResult, error)

	// PlanOnly runs the planner but never touches the target table; it is
	// the read-only plan-introspection entry point.
	PlanOnly(ctx context.Context, req *MergeRequest) ([]PlanOp, error)
}
