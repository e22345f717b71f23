// Package gc deletes blob records that no task references any more.
package gc

import (
	"context"
	"log/slog"

	"mproc/internal/models"
)

// Deleter removes blob records by id. Deleting an unknown id is a no-op.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Result reports one collection pass.
type Result struct {
	CandidateCount int      `json:"candidate_count"`
	DeletedCount   int      `json:"deleted_count"`
	FailedCount    int      `json:"failed_count"`
	Deleted        []string `json:"deleted,omitempty"`
}

// Referenced returns the union of icon and attachment ids across tasks.
func Referenced(tasks []models.Task) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, task := range tasks {
		for _, id := range task.BlobRefs() {
			refs[id] = struct{}{}
		}
	}
	return refs
}

// CollectOrphans deletes each id in removed that no task in survivors still
// references. survivors must be the collection after the mutation that released
// removed. Failures are logged and counted; they never abort the pass.
func CollectOrphans(ctx context.Context, blobs Deleter, survivors []models.Task, removed []string, logger *slog.Logger) Result {
	var result Result
	if blobs == nil || len(removed) == 0 {
		return result
	}
	if logger == nil {
		logger = slog.Default()
	}

	still := Referenced(survivors)
	seen := make(map[string]struct{}, len(removed))
	for _, id := range removed {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := still[id]; ok {
			continue
		}

		result.CandidateCount++
		if err := blobs.Delete(ctx, id); err != nil {
			result.FailedCount++
			logger.Warn("blob delete failed", "component", "gc", "blob_id", id, "error", err)
			continue
		}
		result.DeletedCount++
		result.Deleted = append(result.Deleted, id)
	}

	if result.CandidateCount > 0 {
		logger.Debug("collected orphan blobs", "component", "gc",
			"candidates", result.CandidateCount, "deleted", result.DeletedCount, "failed", result.FailedCount)
	}
	return result
}
