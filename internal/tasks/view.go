package tasks

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"mproc/internal/models"
)

// ListOptions selects a read-only view of the collection.
type ListOptions struct {
	// Sort defaults to the stored settings when empty.
	Sort models.SortMode
	// Query keeps tasks whose title contains it, ignoring case.
	Query string
	// Completed keeps only one list when set.
	Completed *bool
}

// List returns the active tasks (sorted) followed by the completed tasks in
// manual order. The stored order is never changed.
func (r *Repository) List(opts ListOptions) ([]models.Task, error) {
	r.mu.Lock()
	mode := r.settings.Sort
	all := cloneTasks(r.tasks)
	r.mu.Unlock()

	if opts.Sort != "" {
		parsed, err := models.ParseSortMode(string(opts.Sort))
		if err != nil {
			return nil, ErrInvalidSort
		}
		mode = parsed
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	var active, done []models.Task
	for _, task := range all {
		if query != "" && !strings.Contains(strings.ToLower(task.Title), query) {
			continue
		}
		if opts.Completed != nil && task.Completed != *opts.Completed {
			continue
		}
		if task.Completed {
			done = append(done, task)
		} else {
			active = append(active, task)
		}
	}

	SortTasks(active, mode)

	out := make([]models.Task, 0, len(active)+len(done))
	out = append(out, active...)
	out = append(out, done...)
	return out, nil
}

// SortTasks orders tasks in place. Manual leaves the slice untouched. Due sorts
// compare YYYY-MM-DD strings with an empty due date ordered before any date.
func SortTasks(tasks []models.Task, mode models.SortMode) {
	switch mode {
	case models.SortDueAsc:
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Due < tasks[j].Due })
	case models.SortDueDesc:
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Due > tasks[j].Due })
	case models.SortTitle:
		c := collate.New(language.Und)
		sort.SliceStable(tasks, func(i, j int) bool {
			return c.CompareString(tasks[i].Title, tasks[j].Title) < 0
		})
	}
}
