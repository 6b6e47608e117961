package printer

import "github.com/stagegate/stagegate/internal/model"

// Printer knows how to print pipeline information in different formats.
type Printer interface {
	PrintProjectList(projects []model.Project) error
	PrintTaskList(tasks []model.Task) error
	PrintTaskStatus(task model.Task, executions []model.StageExecution) error
	PrintTemplateList(templates []model.StageTemplate) error
	PrintMessage(msg string) error
}
