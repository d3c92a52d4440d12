package main

const (
	defaultTailLines = 50
	statusLogLines   = 10 // log tail shown by the status command
)

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
}

// StartFlags holds flags for the start command.
type StartFlags struct {
	StartLine int
	EndLine   int
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	JSON bool
}

// LogsFlags holds flags for the logs command.
type LogsFlags struct {
	Lines  int
	Follow bool
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen   string
	BasePath string
}
