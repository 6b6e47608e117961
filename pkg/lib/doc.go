// Package lib provides a Go SDK for driving stagegate pipelines programmatically.
//
// This package allows applications (GUI hosts, bots, automation) to manage
// projects, tasks and gated stage executions without shelling out to the
// stagegate CLI binary.
//
// # Quick Start
//
// Create a client, create a project and a task, and drive its stages:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	project, _ := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "my-app"})
//	task, _ := client.CreateTask(ctx, project.ID, lib.CreateTaskOpts{Title: "Add login endpoint"})
//
//	// Run stages until one waits for a decision.
//	exec, _ := client.RunStage(ctx, project.ID, task.ID, "")
//	if exec.Status == lib.ExecutionStatusAwaitingUser {
//	    client.Approve(ctx, project.ID, exec.ID, lib.Decision{})
//	}
//
// # Gating
//
// Stages whose output needs a human decision stop in
// [ExecutionStatusAwaitingUser]. Resolve them with [Client.Approve] or
// [Client.Reject]. The fields of [Decision] that matter depend on the stage's
// output format: selections for options and findings, checks for checklists,
// stage names for stage selection. A decision that violates the stage's gate
// rule fails with [ErrGateNotSatisfied] and the execution keeps awaiting.
//
// # Events
//
// Subscribe to pipeline events to refresh UI state:
//
//	events, stop := client.Events()
//	defer stop()
//	go func() {
//	    for ev := range events {
//	        fmt.Printf("%s: task %s\n", ev.Kind, ev.TaskID)
//	    }
//	}()
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Resource does not exist.
//   - [ErrAlreadyExists]: Resource with the same name already exists.
//   - [ErrNotValid]: Invalid input or operation.
//   - [ErrGateNotSatisfied]: Decision violates the stage's gate rule.
//   - [ErrStageActive]: The stage already has a running or awaiting attempt.
//
// # Testing
//
// Use the fake agent and a temporary data dir to write tests without real
// infrastructure:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    DataDir: t.TempDir(),
//	    Agent:   lib.AgentFake,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The
// underlying storage uses SQLite with a per-database serialization gate, and
// engines are created per-operation.
package lib
