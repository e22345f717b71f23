package tasks

import (
	"context"
	"fmt"
	"strings"

	"mproc/internal/models"
)

const copySuffix = " (copy)"

// Create stores the uploads, then inserts a new task at the front of the list.
func (r *Repository) Create(ctx context.Context, in TaskInput) (models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, ErrTitleRequired
	}
	due, err := normalizeDue(in.Due)
	if err != nil {
		return models.Task{}, err
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = r.defaultColor
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var iconID string
	if in.Icon != nil {
		info, err := r.storeUpload(ctx, *in.Icon)
		if err != nil {
			return models.Task{}, err
		}
		iconID = info.ID
	}
	refs, err := r.storeUploads(ctx, in.Attachments)
	if err != nil {
		r.discardBlobs(ctx, []string{iconID})
		return models.Task{}, err
	}

	id, err := r.newTaskID()
	if err != nil {
		r.discardBlobs(ctx, append(refIDs(refs), iconID))
		return models.Task{}, err
	}

	task := models.Task{
		ID:          id,
		Title:       title,
		Due:         due,
		Description: in.Description,
		Color:       color,
		IconID:      iconID,
		Attachments: refs,
		Completed:   false,
		CreatedAt:   r.now(),
	}
	r.tasks = append([]models.Task{task}, r.tasks...)

	return task.Clone(), r.commit(ctx, []string{id}, nil)
}

// Update merges patch into the task. New attachments are appended; a new icon
// replaces the old one.
func (r *Repository) Update(ctx context.Context, id string, patch TaskPatch) (models.Task, error) {
	var title, due string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" {
			return models.Task{}, ErrTitleRequired
		}
	}
	if patch.Due != nil {
		normalized, err := normalizeDue(*patch.Due)
		if err != nil {
			return models.Task{}, err
		}
		due = normalized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}

	var newIconID string
	if patch.Icon != nil {
		info, err := r.storeUpload(ctx, *patch.Icon)
		if err != nil {
			return models.Task{}, err
		}
		newIconID = info.ID
	}
	added, err := r.storeUploads(ctx, patch.Attachments)
	if err != nil {
		r.discardBlobs(ctx, []string{newIconID})
		return models.Task{}, err
	}

	task := &r.tasks[i]
	var released []string
	if patch.Title != nil {
		task.Title = title
	}
	if patch.Due != nil {
		task.Due = due
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Color != nil {
		color := strings.TrimSpace(*patch.Color)
		if color == "" {
			color = r.defaultColor
		}
		task.Color = color
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	switch {
	case newIconID != "":
		if task.IconID != "" {
			released = append(released, task.IconID)
		}
		task.IconID = newIconID
	case patch.ClearIcon:
		if task.IconID != "" {
			released = append(released, task.IconID)
		}
		task.IconID = ""
	}
	if len(added) > 0 {
		task.Attachments = append(task.Attachments, added...)
	}

	updated := task.Clone()
	return updated, r.commit(ctx, []string{id}, released)
}

// Duplicate inserts a deep copy right after the source task. Blobs are shared.
func (r *Repository) Duplicate(ctx context.Context, id string) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}
	newID, err := r.newTaskID()
	if err != nil {
		return models.Task{}, err
	}

	dup := r.tasks[i].Clone()
	dup.ID = newID
	dup.Title += copySuffix
	dup.Completed = false

	r.tasks = append(r.tasks, models.Task{})
	copy(r.tasks[i+2:], r.tasks[i+1:])
	r.tasks[i+1] = dup

	return dup.Clone(), r.commit(ctx, []string{newID}, nil)
}

// Remove deletes a task and collects the blobs only it referenced.
func (r *Repository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	removed := r.tasks[i]
	r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)

	return r.commit(ctx, []string{id}, removed.BlobRefs())
}

// RemoveAttachment drops every reference to blobID from the task.
func (r *Repository) RemoveAttachment(ctx context.Context, taskID, blobID string) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(taskID)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}
	task := &r.tasks[i]
	kept := make([]models.AttachmentRef, 0, len(task.Attachments))
	for _, ref := range task.Attachments {
		if ref.ID != blobID {
			kept = append(kept, ref)
		}
	}
	if len(kept) == len(task.Attachments) {
		return models.Task{}, ErrAttachmentNotFound
	}
	task.Attachments = kept

	updated := task.Clone()
	return updated, r.commit(ctx, []string{taskID}, []string{blobID})
}

// SetCompleted moves a task between the active and completed lists.
func (r *Repository) SetCompleted(ctx context.Context, id string, completed bool) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}
	r.tasks[i].Completed = completed

	updated := r.tasks[i].Clone()
	return updated, r.commit(ctx, []string{id}, nil)
}

// Reorder applies a drag-and-drop result. ids is the new order of one list
// (active when completed is false). Every named task takes the completed flag,
// so dragging a task across lists moves it. Tasks of that list not named keep
// their relative order after the named ones. The other list is kept as is:
// when completed is true it comes first, otherwise it follows.
func (r *Repository) Reorder(ctx context.Context, ids []string, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	named := make(map[string]struct{}, len(ids))
	list := make([]models.Task, 0, len(r.tasks))
	for _, id := range ids {
		if _, dup := named[id]; dup {
			continue
		}
		i := r.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		named[id] = struct{}{}
		task := r.tasks[i]
		task.Completed = completed
		list = append(list, task)
	}

	var others []models.Task
	for _, task := range r.tasks {
		if _, ok := named[task.ID]; ok {
			continue
		}
		if task.Completed == completed {
			list = append(list, task)
		} else {
			others = append(others, task)
		}
	}

	next := make([]models.Task, 0, len(r.tasks))
	if completed {
		next = append(next, others...)
		next = append(next, list...)
	} else {
		next = append(next, list...)
		next = append(next, others...)
	}
	r.tasks = next

	changed := make([]string, 0, len(named))
	for _, id := range ids {
		if _, ok := named[id]; ok {
			changed = append(changed, id)
			delete(named, id)
		}
	}
	return r.commit(ctx, changed, nil)
}

// ClearCompleted removes every completed task and collects their blobs in one
// pass over the survivors.
func (r *Repository) ClearCompleted(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]models.Task, 0, len(r.tasks))
	var removedIDs, released []string
	for _, task := range r.tasks {
		if task.Completed {
			removedIDs = append(removedIDs, task.ID)
			released = append(released, task.BlobRefs()...)
			continue
		}
		kept = append(kept, task)
	}
	if len(removedIDs) == 0 {
		return 0, nil
	}
	r.tasks = kept

	return len(removedIDs), r.commit(ctx, removedIDs, released)
}

func normalizeDue(raw string) (string, error) {
	due, err := models.NormalizeDue(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidDue, strings.TrimSpace(raw))
	}
	return due, nil
}
