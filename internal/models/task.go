package models

import "time"

// DefaultColor is the tag color used when a task is created without one.
const DefaultColor = "#6d28d9"

// Task represents a single to-do item.
type Task struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Due         string          `json:"due,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       string          `json:"color"`
	IconID      string          `json:"icon_id,omitempty"`
	Attachments []AttachmentRef `json:"attachments"`
	Completed   bool            `json:"completed"`
	CreatedAt   time.Time       `json:"created_at"`

	// InlineIcon is only set on records read from rows written before the
	// blob store existed. The migration engine clears it.
	InlineIcon *InlinePayload `json:"-"`
}

// AttachmentRef is a weak reference from a task to a blob record.
type AttachmentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	// Inline carries a legacy inline payload; ID is empty when it is set.
	Inline *InlinePayload `json:"-"`
}

// InlinePayload is binary content embedded in task metadata as a data URL.
type InlinePayload struct {
	DataURL string
	Name    string
	Type    string
}

// HasInlinePayload reports whether the task still carries legacy inline content.
func (t Task) HasInlinePayload() bool {
	if t.InlineIcon != nil {
		return true
	}
	for _, a := range t.Attachments {
		if a.Inline != nil {
			return true
		}
	}
	return false
}

// BlobRefs returns every blob id the task references, icon first.
func (t Task) BlobRefs() []string {
	refs := make([]string, 0, len(t.Attachments)+1)
	if t.IconID != "" {
		refs = append(refs, t.IconID)
	}
	for _, a := range t.Attachments {
		if a.ID != "" {
			refs = append(refs, a.ID)
		}
	}
	return refs
}

// Clone returns a deep copy of the task. Blob references are copied, not the blobs.
func (t Task) Clone() Task {
	out := t
	if t.Attachments != nil {
		out.Attachments = make([]AttachmentRef, len(t.Attachments))
		copy(out.Attachments, t.Attachments)
		for i := range out.Attachments {
			if out.Attachments[i].Inline != nil {
				inline := *out.Attachments[i].Inline
				out.Attachments[i].Inline = &inline
			}
		}
	}
	if t.InlineIcon != nil {
		inline := *t.InlineIcon
		out.InlineIcon = &inline
	}
	return out
}

// Progress summarizes completion over the whole collection.
type Progress struct {
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}
