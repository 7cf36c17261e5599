package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCmd_Version(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if got := out.String(); got != "snacker version dev\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"init", "select-project", "login", "logout", "whoami", "watch", "serve", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}

	if root.PersistentFlags().Lookup("project") == nil {
		t.Error("missing --project flag")
	}
}

func TestRootCmd_InitRequiresURL(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"init"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "accepts 1 arg") {
		t.Errorf("expected argument error, got %v", err)
	}
}
