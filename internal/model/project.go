package model

import (
	"fmt"
	"time"
)

// Project represents a project with its own pipeline definition and tasks.
// Each project owns one embedded database that holds its stage templates,
// tasks and execution history.
type Project struct {
	ID        string
	Name      string
	Path      string // Working directory of the project repository (used by VCS operations).
	Archived  bool
	CreatedAt time.Time
}

// Validate validates the project.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if p.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	return nil
}
