package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"pkt.systems/checkin/internal/version"
)

func TestRootHasClaim(t *testing.T) {
	root := newRootCmd()
	found := false
	for _, cmd := range root.Commands() {
		if cmd.Name() == "claim" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected root command to include claim")
	}
}

func TestRootHasDoctor(t *testing.T) {
	root := newRootCmd()
	found := false
	for _, cmd := range root.Commands() {
		if cmd.Name() == "doctor" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected root command to include doctor")
	}
}

func TestRootHasBootstrap(t *testing.T) {
	root := newRootCmd()
	found := false
	for _, cmd := range root.Commands() {
		if cmd.Name() == "bootstrap" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected root command to include bootstrap")
	}
}

func TestRootHasMockSite(t *testing.T) {
	root := newRootCmd()
	found := false
	for _, cmd := range root.Commands() {
		if cmd.Name() == "mock-site" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected root command to include mock-site")
	}
}

func TestRootHasVersion(t *testing.T) {
	root := newRootCmd()
	found := false
	for _, cmd := range root.Commands() {
		if cmd.Name() == "version" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected root command to include version")
	}
}

func TestVersionCommandOutput(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"version"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	want := fmt.Sprintf("%s %s\n", version.Module(), version.Current())
	if buf.String() != want {
		t.Fatalf("version output = %q, want %q", buf.String(), want)
	}
}
