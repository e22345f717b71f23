package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mproc/internal/format"
	"mproc/internal/models"
)

var (
	stdout          io.Writer        = os.Stdout
	outputFormatter format.Formatter = format.JSONFormatter{}
	clock                            = time.Now
)

func writeJSON(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func writeTaskList(tasks []models.Task) error {
	for _, task := range tasks {
		if err := writePlain("%s\n", formatTaskLine(task)); err != nil {
			return err
		}
	}
	return nil
}

func writeTaskDetail(task models.Task, blobs map[string]models.BlobInfo) error {
	lines := []string{
		fmt.Sprintf("id: %s", task.ID),
		fmt.Sprintf("title: %s", task.Title),
		fmt.Sprintf("completed: %t", task.Completed),
		fmt.Sprintf("color: %s", task.Color),
		fmt.Sprintf("created_at: %s", formatTime(task.CreatedAt)),
	}
	if task.Due != "" {
		lines = append(lines, fmt.Sprintf("due: %s", formatDue(task.Due, clock())))
	}
	if task.Description != "" {
		lines = append(lines, fmt.Sprintf("description: %s", task.Description))
	}
	if task.IconID != "" {
		lines = append(lines, fmt.Sprintf("icon: %s", task.IconID))
	}
	if len(task.Attachments) > 0 {
		lines = append(lines, "attachments:")
		for _, ref := range task.Attachments {
			lines = append(lines, "  - "+formatAttachmentLine(ref, blobs))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatTaskLine(task models.Task) string {
	mark := "○"
	if task.Completed {
		mark = "●"
	}
	line := fmt.Sprintf("%s %s %s", mark, task.ID, task.Title)
	if task.Due != "" {
		line += fmt.Sprintf(" (due %s)", formatDue(task.Due, clock()))
	}
	if n := len(task.Attachments); n > 0 {
		line += fmt.Sprintf(" [%d %s]", n, plural(n, "file", "files"))
	}
	return line
}

// formatDue appends how far the due date is from today's local date.
func formatDue(due string, now time.Time) string {
	day, err := time.Parse(time.DateOnly, due)
	if err != nil {
		return due
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	days := int(day.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return due + ", overdue"
	case days == 0:
		return due + ", due today"
	case days == 1:
		return due + ", due tomorrow"
	default:
		return fmt.Sprintf("%s, in %d days", due, days)
	}
}

func formatAttachmentLine(ref models.AttachmentRef, blobs map[string]models.BlobInfo) string {
	line := fmt.Sprintf("%s %s (%s)", ref.ID, ref.Name, ref.Type)
	info, ok := blobs[ref.ID]
	if !ok {
		return line + " missing"
	}
	return line + " " + humanize.Bytes(uint64(info.SizeBytes))
}

func formatProgress(p models.Progress) string {
	return fmt.Sprintf("%d/%d done (%.0f%%)", p.Done, p.Total, p.Percent)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
