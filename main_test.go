package main

import (
	"testing"

	"deskhub/cmd"
)

func TestVersionDefault(t *testing.T) {
	if version != "dev" {
		t.Errorf("Expected default version to be 'dev', got %s", version)
	}
}

func TestVersionInjection(t *testing.T) {
	cmd.SetVersion("1.2.3")
	defer cmd.SetVersion("")

	if got := cmd.GetVersion(); got != "1.2.3" {
		t.Errorf("Expected injected version 1.2.3, got %s", got)
	}
}
