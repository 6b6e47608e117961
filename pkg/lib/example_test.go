package lib_test

import (
	"context"
	"fmt"
	"os"

	"github.com/stagegate/stagegate/pkg/lib"
)

// This example shows how to create a client using the fake agent for testing.
func Example_testing() {
	ctx := context.Background()

	// Use a temp directory and fake agent for testing.
	dir, err := os.MkdirTemp("", "stagegate-example-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	client, err := lib.New(ctx, lib.Config{
		DataDir: dir,
		Agent:   lib.AgentFake,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	// Create a project: it comes seeded with the default stage pipeline.
	project, err := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "my-app"})
	if err != nil {
		panic(err)
	}

	templates, err := client.ListStageTemplates(ctx, project.ID)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Created: %s (%d stages)\n", project.Name, len(templates))

	// Output:
	// Created: my-app (9 stages)
}

// This example drives a task through its first stages: the research stage
// auto-approves, the planning stage waits for a decision.
func Example_pipeline() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "stagegate-example-pipeline-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	client, err := lib.New(ctx, lib.Config{
		DataDir: dir,
		Agent:   lib.AgentFake,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	project, err := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "my-app"})
	if err != nil {
		panic(err)
	}

	task, err := client.CreateTask(ctx, project.ID, lib.CreateTaskOpts{
		Title: "Add login endpoint",
	})
	if err != nil {
		panic(err)
	}

	// First stage runs and approves itself.
	exec, err := client.RunStage(ctx, project.ID, task.ID, "")
	if err != nil {
		panic(err)
	}
	fmt.Printf("first stage: %s\n", exec.Status)

	// Second stage waits for a human decision.
	exec, err = client.RunStage(ctx, project.ID, task.ID, "")
	if err != nil {
		panic(err)
	}
	fmt.Printf("second stage: %s\n", exec.Status)

	// Approve it with notes for the next stage.
	err = client.Approve(ctx, project.ID, exec.ID, lib.Decision{
		Notes: "Plan looks good, keep the API surface small.",
	})
	if err != nil {
		panic(err)
	}

	updated, err := client.GetTask(ctx, project.ID, task.ID)
	if err != nil {
		panic(err)
	}
	fmt.Printf("task: %s\n", updated.Status)

	// Output:
	// first stage: approved
	// second stage: awaiting_user
	// task: in_progress
}
