package main

import "testing"

func TestBuildRootCommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"start":  false,
		"status": false,
		"stop":   false,
		"logs":   false,
		"serve":  false,
	}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag missing")
	}
}

func TestLogsFlagDefaults(t *testing.T) {
	root := buildRoot()
	logs, _, err := root.Find([]string{"logs"})
	if err != nil {
		t.Fatalf("find logs: %v", err)
	}
	n := logs.Flags().Lookup("lines")
	if n == nil || n.DefValue != "50" {
		t.Fatalf("lines flag = %+v", n)
	}
	if logs.Flags().Lookup("follow") == nil {
		t.Fatal("follow flag missing")
	}
}
