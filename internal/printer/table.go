package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/stagegate/stagegate/internal/model"
)

// TablePrinter prints pipeline information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintProjectList prints projects in a table format.
func (t *TablePrinter) PrintProjectList(projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tPATH\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Path, TimeAgo(p.CreatedAt))
	}

	return nil
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tUPDATED")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", task.ID, task.Title, task.Status, TimeAgo(task.UpdatedAt))
	}

	return nil
}

// PrintTaskStatus prints a detailed task status with its execution history.
func (t *TablePrinter) PrintTaskStatus(task model.Task, executions []model.StageExecution) error {
	fmt.Fprintf(t.writer, "Title:      %s\n", task.Title)
	fmt.Fprintf(t.writer, "ID:         %s\n", task.ID)
	fmt.Fprintf(t.writer, "Status:     %s\n", task.Status)
	if task.CurrentStageID != "" {
		fmt.Fprintf(t.writer, "Stage:      %s\n", task.CurrentStageID)
	}
	if task.ParentTaskID != "" {
		fmt.Fprintf(t.writer, "Parent:     %s\n", task.ParentTaskID)
	}
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(task.CreatedAt))
	fmt.Fprintf(t.writer, "Updated:    %s\n", FormatTimestamp(task.UpdatedAt))

	if len(executions) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "STAGE\tATTEMPT\tSTATUS\tCOST\tCREATED")
	for _, e := range executions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t$%.4f\t%s\n",
			e.StageID, e.Attempt, e.Status, e.Telemetry.CostUSD, TimeAgo(e.CreatedAt))
	}

	return nil
}

// PrintTemplateList prints stage templates in a table format.
func (t *TablePrinter) PrintTemplateList(templates []model.StageTemplate) error {
	if len(templates) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ORDER\tNAME\tFORMAT\tOPTIONAL\tFLAGS")
	for _, tpl := range templates {
		optional := "no"
		if tpl.Optional {
			optional = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			tpl.SortOrder, tpl.Name, tpl.OutputFormat, optional, templateFlags(tpl))
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func templateFlags(tpl model.StageTemplate) string {
	flags := ""
	add := func(f string) {
		if flags != "" {
			flags += ","
		}
		flags += f
	}
	if tpl.CommitsChanges {
		add("commits")
	}
	if tpl.CreatesPR {
		add("pr")
	}
	if tpl.TriggersStageSelection {
		add("selects-stages")
	}
	if tpl.IsTerminal {
		add("terminal")
	}
	if flags == "" {
		flags = "-"
	}
	return flags
}
