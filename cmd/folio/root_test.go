package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-folio/core"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteDSN() string {
	return fmt.Sprintf("file:folio-cli-%d?mode=memory&cache=shared", time.Now().UnixNano())
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "migrate", "replay", "show", "list"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q, got %v", name, err)
		}
	}
}

func TestMigrateCommand_SQLite(t *testing.T) {
	out, err := runCommand(t, "migrate", "--driver", "sqlite3", "--dsn", sqliteDSN())
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if out != "migrations applied\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestMigrateCommand_RejectsDegradedMode(t *testing.T) {
	if _, err := runCommand(t, "migrate", "--mode", "degraded"); !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestListCommand_EmptyStore(t *testing.T) {
	dsn := sqliteDSN()
	ctx := context.Background()
	env, err := setup(ctx, &globalFlags{driver: "sqlite3", dsn: dsn}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	client, err := env.openStore(ctx, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer client.Close()

	out, err := runCommand(t, "list", "--driver", "sqlite3", "--dsn", dsn, "--status", "failed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var records []core.ProcessingRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	if _, err := runCommand(t, "show", "missing", "--driver", "sqlite3", "--dsn", dsn); err == nil {
		t.Fatalf("expected show of unknown event to fail")
	}
	if _, err := runCommand(t, "replay", "missing", "--driver", "sqlite3", "--dsn", dsn); err == nil {
		t.Fatalf("expected replay of unknown event to fail")
	}
}
