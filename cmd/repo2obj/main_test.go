package main

import (
	"strings"
	"testing"

	"github.com/rgal/llvm-project-prepo/internal/perr"
)

func TestRunRejectsMissingTicketArgument(t *testing.T) {
	err := run([]string{"--repo", "store.db", "-o", "out.o"})
	if err == nil {
		t.Fatal("expected error when no ticket file argument is given")
	}
	if !perr.Is(err, perr.Format) {
		t.Errorf("got %v, want a Format-kind error", err)
	}
}

func TestRunRejectsTooManyTicketArguments(t *testing.T) {
	err := run([]string{"--repo", "store.db", "-o", "out.o", "a.ticket", "b.ticket"})
	if err == nil {
		t.Fatal("expected error when more than one ticket file argument is given")
	}
	if !perr.Is(err, perr.Format) {
		t.Errorf("got %v, want a Format-kind error", err)
	}
}

func TestRunDefaultsRepoPathToClangDB(t *testing.T) {
	t.Setenv("REPOFILE", "")
	err := run([]string{"-o", "out.o", "a.ticket"})
	if err == nil {
		t.Fatal("expected error opening the default store path")
	}
	if !strings.Contains(err.Error(), defaultRepoPath) {
		t.Errorf("error = %q, want it to mention the default repo path %q", err.Error(), defaultRepoPath)
	}
}

func TestRunDefaultsOutputPathToAOut(t *testing.T) {
	// No -o given and no store present: the run must fail opening the
	// store, not complaining about a missing output path, proving
	// outPath was defaulted rather than left empty.
	err := run([]string{"--repo", "store.db", "a.ticket"})
	if err == nil {
		t.Fatal("expected error opening a nonexistent store")
	}
	if strings.Contains(err.Error(), "output path") {
		t.Errorf("error = %q, -o should have defaulted to %q", err.Error(), defaultOutPath)
	}
}

func TestRunRepoFlagTakesPrecedenceOverEnv(t *testing.T) {
	t.Setenv("REPOFILE", "/from/env.db")
	err := run([]string{"--repo", "/from/flag.db", "-o", "out.o", "a.ticket"})
	if err == nil {
		t.Fatal("expected error opening a nonexistent store")
	}
	if !strings.Contains(err.Error(), "/from/flag.db") {
		t.Errorf("error = %q, want it to reference the --repo flag's path, not $REPOFILE", err.Error())
	}
}

func TestRunUsesRepofileEnvFallback(t *testing.T) {
	t.Setenv("REPOFILE", "/nonexistent/store.db")
	err := run([]string{"-o", "out.o", "a.ticket"})
	if err == nil {
		t.Fatal("expected error opening a nonexistent store")
	}
	if !strings.Contains(err.Error(), "/nonexistent/store.db") {
		t.Errorf("error = %q, want it to reference $REPOFILE's path", err.Error())
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	err := run([]string{"--bogus-flag", "a.ticket"})
	if err == nil {
		t.Fatal("expected error parsing an unrecognized flag")
	}
	if !perr.Is(err, perr.Format) {
		t.Errorf("got %v, want a Format-kind error", err)
	}
}
