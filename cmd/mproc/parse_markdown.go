package main

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"mproc/internal/tasks"
)

var (
	listItemRegex = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)
	checkboxRegex = regexp.MustCompile(`^\[([ xX])\]\s+(.*)$`)
)

// markdownItem is one list entry. Checked boxes ("- [x] ...") become completed tasks.
type markdownItem struct {
	Title     string
	Completed bool
}

// markdownDefaults are front matter fields applied to every item.
type markdownDefaults struct {
	Due         string `yaml:"due"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
}

func parseMarkdown(input string) (markdownDefaults, []markdownItem, error) {
	var defaults markdownDefaults
	content := input

	lines := strings.Split(input, "\n")
	if len(lines) >= 3 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return defaults, nil, fmt.Errorf("front matter not closed")
		}
		frontText := strings.Join(lines[1:end], "\n")
		if err := yaml.Unmarshal([]byte(frontText), &defaults); err != nil {
			return defaults, nil, fmt.Errorf("front matter: %w", err)
		}
		content = strings.Join(lines[end+1:], "\n")
	}

	items := []markdownItem{}
	for _, line := range strings.Split(content, "\n") {
		match := listItemRegex.FindStringSubmatch(line)
		if len(match) != 2 {
			continue
		}
		item := markdownItem{Title: strings.TrimSpace(match[1])}
		if box := checkboxRegex.FindStringSubmatch(item.Title); len(box) == 3 {
			item.Completed = box[1] != " "
			item.Title = strings.TrimSpace(box[2])
		}
		if item.Title != "" {
			items = append(items, item)
		}
	}

	return defaults, items, nil
}

func (d markdownDefaults) input(title string) tasks.TaskInput {
	return tasks.TaskInput{
		Title:       title,
		Due:         strings.TrimSpace(d.Due),
		Description: d.Description,
		Color:       strings.TrimSpace(d.Color),
	}
}
