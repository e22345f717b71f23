package tasks

import (
	"context"
	"fmt"

	"mproc/internal/gc"
)

// SweepResult reports a full scan of the blob store for unreferenced records.
type SweepResult struct {
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}

// SweepBlobs finds blob records no task references. With apply set they are
// deleted; otherwise only counted. This repairs leaks left when a process
// stopped between storing a blob and saving the task that referenced it.
// Deleting is refused when the task collection could not be loaded.
func (r *Repository) SweepBlobs(ctx context.Context, apply bool) (SweepResult, error) {
	result := SweepResult{DryRun: !apply}

	r.mu.Lock()
	defer r.mu.Unlock()

	if apply && r.loadErr != nil {
		return result, r.unavailable()
	}

	infos, err := r.blobs.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list blobs: %w", err)
	}
	referenced := gc.Referenced(r.tasks)

	for _, info := range infos {
		if _, ok := referenced[info.ID]; ok {
			continue
		}
		result.CandidateCount++
		if !apply {
			result.ReclaimedBytes += info.SizeBytes
			continue
		}
		if err := r.blobs.Delete(ctx, info.ID); err != nil {
			result.FailedCount++
			r.logger.Warn("sweep delete failed", "blob_id", info.ID, "error", err)
			continue
		}
		result.DeletedCount++
		result.ReclaimedBytes += info.SizeBytes
	}

	if result.CandidateCount > 0 {
		r.logger.Info("blob sweep", "candidates", result.CandidateCount, "deleted", result.DeletedCount,
			"failed", result.FailedCount, "dry_run", result.DryRun)
	}
	return result, nil
}
