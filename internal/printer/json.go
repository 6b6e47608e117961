package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/stagegate/stagegate/internal/model"
)

// JSONPrinter prints pipeline information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type projectItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}

type taskItem struct {
	ID             string    `json:"id"`
	ParentTaskID   string    `json:"parent_task_id,omitempty"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	CurrentStageID string    `json:"current_stage_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type executionItem struct {
	ID           string     `json:"id"`
	StageID      string     `json:"stage_id"`
	Attempt      int        `json:"attempt"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CostUSD      float64    `json:"cost_usd"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type taskStatusOutput struct {
	Task       taskItem        `json:"task"`
	Executions []executionItem `json:"executions"`
}

type templateItem struct {
	ID                     string `json:"id"`
	SortOrder              int    `json:"sort_order"`
	Name                   string `json:"name"`
	OutputFormat           string `json:"output_format"`
	Optional               bool   `json:"optional"`
	CommitsChanges         bool   `json:"commits_changes"`
	CreatesPR              bool   `json:"creates_pr"`
	TriggersStageSelection bool   `json:"triggers_stage_selection"`
	IsTerminal             bool   `json:"is_terminal"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintProjectList prints projects in JSON format.
func (j *JSONPrinter) PrintProjectList(projects []model.Project) error {
	items := make([]projectItem, len(projects))
	for i, p := range projects {
		items[i] = projectItem{
			ID:        p.ID,
			Name:      p.Name,
			Path:      p.Path,
			Archived:  p.Archived,
			CreatedAt: p.CreatedAt.UTC(),
		}
	}
	return j.encode(items)
}

// PrintTaskList prints tasks in JSON format.
func (j *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	items := make([]taskItem, len(tasks))
	for i, t := range tasks {
		items[i] = newTaskItem(t)
	}
	return j.encode(items)
}

// PrintTaskStatus prints a task with its execution history in JSON format.
func (j *JSONPrinter) PrintTaskStatus(task model.Task, executions []model.StageExecution) error {
	out := taskStatusOutput{
		Task:       newTaskItem(task),
		Executions: make([]executionItem, len(executions)),
	}
	for i, e := range executions {
		item := executionItem{
			ID:           e.ID,
			StageID:      e.StageID,
			Attempt:      e.Attempt,
			Status:       string(e.Status),
			ErrorMessage: e.ErrorMessage,
			CostUSD:      e.Telemetry.CostUSD,
			CreatedAt:    e.CreatedAt.UTC(),
		}
		if e.FinishedAt != nil {
			utc := e.FinishedAt.UTC()
			item.FinishedAt = &utc
		}
		out.Executions[i] = item
	}
	return j.encode(out)
}

// PrintTemplateList prints stage templates in JSON format.
func (j *JSONPrinter) PrintTemplateList(templates []model.StageTemplate) error {
	items := make([]templateItem, len(templates))
	for i, t := range templates {
		items[i] = templateItem{
			ID:                     t.ID,
			SortOrder:              t.SortOrder,
			Name:                   t.Name,
			OutputFormat:           string(t.OutputFormat),
			Optional:               t.Optional,
			CommitsChanges:         t.CommitsChanges,
			CreatesPR:              t.CreatesPR,
			TriggersStageSelection: t.TriggersStageSelection,
			IsTerminal:             t.IsTerminal,
		}
	}
	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v interface{}) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTaskItem(t model.Task) taskItem {
	return taskItem{
		ID:             t.ID,
		ParentTaskID:   t.ParentTaskID,
		Title:          t.Title,
		Status:         string(t.Status),
		CurrentStageID: t.CurrentStageID,
		CreatedAt:      t.CreatedAt.UTC(),
		UpdatedAt:      t.UpdatedAt.UTC(),
	}
}
