package store

import (
	"context"
	"database/sql"
	"fmt"

	"mproc/internal/models"
)

const taskColumns = "id, title, due, description, color, completed, created_at, icon_id, icon_data_url, icon_name, icon_type, format_version"
const attachmentColumns = "task_id, blob_id, name, type, data_url"

// SaveTasks replaces the stored collection in one transaction, keeping order.
func (s *Store) SaveTasks(ctx context.Context, tasks []models.Task) (err error) {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM task_attachments"); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return err
	}

	taskStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, position, title, due, description, color, completed, created_at,
			icon_id, icon_data_url, icon_name, icon_type, format_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?)
	`)
	if err != nil {
		return err
	}
	defer taskStmt.Close()

	attachStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO task_attachments (task_id, position, blob_id, name, type, data_url)
		VALUES (?, ?, ?, ?, ?, NULL)
	`)
	if err != nil {
		return err
	}
	defer attachStmt.Close()

	for i, task := range tasks {
		if _, err = taskStmt.ExecContext(ctx,
			task.ID,
			i,
			task.Title,
			nullIfEmpty(task.Due),
			nullIfEmpty(task.Description),
			nullIfEmpty(task.Color),
			boolToInt(task.Completed),
			formatTime(task.CreatedAt),
			nullIfEmpty(task.IconID),
			FormatVersion,
		); err != nil {
			return fmt.Errorf("save task %s: %w", task.ID, err)
		}

		pos := 0
		for _, ref := range task.Attachments {
			if ref.ID == "" {
				continue
			}
			if _, err = attachStmt.ExecContext(ctx, task.ID, pos, ref.ID, ref.Name, ref.Type); err != nil {
				return fmt.Errorf("save attachment %s of %s: %w", ref.ID, task.ID, err)
			}
			pos++
		}
	}

	return tx.Commit()
}

// LoadTasks returns the stored collection in order. Legacy inline columns are
// surfaced as InlineIcon and AttachmentRef.Inline.
func (s *Store) LoadTasks(ctx context.Context) ([]models.Task, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	index := map[string]int{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if task == nil {
			continue
		}
		index[task.ID] = len(tasks)
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the single pooled connection before the next query.
	rows.Close()

	attachRows, err := db.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM task_attachments ORDER BY task_id ASC, position ASC`)
	if err != nil {
		return nil, err
	}
	defer attachRows.Close()

	for attachRows.Next() {
		taskID, ref, err := scanAttachment(attachRows)
		if err != nil {
			return nil, err
		}
		i, ok := index[taskID]
		if !ok {
			continue
		}
		tasks[i].Attachments = append(tasks[i].Attachments, ref)
	}
	if err := attachRows.Err(); err != nil {
		return nil, err
	}

	for i := range tasks {
		if tasks[i].Attachments == nil {
			tasks[i].Attachments = []models.AttachmentRef{}
		}
	}
	return tasks, nil
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*models.Task, error) {
	var task models.Task
	var due, description, color sql.NullString
	var iconID, iconDataURL, iconName, iconType sql.NullString
	var completed, formatVersion int
	var createdAt string

	if err := scanner.Scan(
		&task.ID,
		&task.Title,
		&due,
		&description,
		&color,
		&completed,
		&createdAt,
		&iconID,
		&iconDataURL,
		&iconName,
		&iconType,
		&formatVersion,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	task.Due = due.String
	task.Description = description.String
	task.Color = color.String
	task.Completed = completed != 0
	task.IconID = iconID.String

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("task %s created_at: %w", task.ID, err)
	}
	task.CreatedAt = parsed

	if iconDataURL.String != "" {
		task.InlineIcon = &models.InlinePayload{
			DataURL: iconDataURL.String,
			Name:    iconName.String,
			Type:    iconType.String,
		}
	}

	return &task, nil
}

func scanAttachment(scanner interface {
	Scan(dest ...any) error
}) (string, models.AttachmentRef, error) {
	var taskID string
	var blobID, name, mediaType, dataURL sql.NullString
	if err := scanner.Scan(&taskID, &blobID, &name, &mediaType, &dataURL); err != nil {
		return "", models.AttachmentRef{}, err
	}

	ref := models.AttachmentRef{
		ID:   blobID.String,
		Name: name.String,
		Type: mediaType.String,
	}
	if dataURL.String != "" {
		ref.Inline = &models.InlinePayload{
			DataURL: dataURL.String,
			Name:    name.String,
			Type:    mediaType.String,
		}
	}
	return taskID, ref, nil
}
