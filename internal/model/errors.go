package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrGateNotSatisfied is returned when a stage's gate rule rejects the
	// user decision (e.g. wrong number of selected items).
	ErrGateNotSatisfied = errors.New("gate not satisfied")
	// ErrStageActive is returned when an operation requires no in-flight
	// stage execution but one exists for the (task, stage) pair.
	ErrStageActive = errors.New("stage execution already active")
)
