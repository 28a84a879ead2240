// repo2obj reconstitutes one ELF64 relocatable object from a ticket's
// member list, reading fragments and names out of a read-only store.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/rgal/llvm-project-prepo/elfasm"
	"github.com/rgal/llvm-project-prepo/internal/perr"
	"github.com/rgal/llvm-project-prepo/store"
	"github.com/rgal/llvm-project-prepo/ticket"
)

const (
	defaultRepoPath = "./clang.db"
	defaultOutPath  = "./a.out"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logLevel := logrus.ErrorLevel
		kind := "error"
		if pe, ok := perrKind(err); ok {
			kind = pe.String()
		}
		logrus.WithField("kind", kind).Log(logLevel, err)
		os.Exit(1)
	}
}

func perrKind(err error) (perr.Kind, bool) {
	for _, k := range []perr.Kind{perr.IO, perr.Format, perr.Missing, perr.InvariantViolation, perr.Allocation} {
		if perr.Is(err, k) {
			return k, true
		}
	}
	return 0, false
}

// run resolves --repo with flag > $REPOFILE > defaultRepoPath
// precedence, --output/-o defaulting to defaultOutPath, then reads the
// named ticket file and assembles it against the resolved store.
func run(args []string) error {
	var repoPath, outPath string

	flagSet := pflag.NewFlagSet("repo2obj", pflag.ContinueOnError)
	flagSet.StringVar(&repoPath, "repo", "", "path to the store database (default: $REPOFILE, or "+defaultRepoPath+")")
	flagSet.StringVarP(&outPath, "output", "o", defaultOutPath, "path to write the assembled ET_REL object")
	if err := flagSet.Parse(args); err != nil {
		return perr.Wrap(perr.Format, err, "parsing command-line flags")
	}

	if repoPath == "" {
		repoPath = os.Getenv("REPOFILE")
	}
	if repoPath == "" {
		repoPath = defaultRepoPath
	}

	ticketArgs := flagSet.Args()
	if len(ticketArgs) != 1 {
		return perr.New(perr.Format, "expected exactly one ticket file argument")
	}

	st, err := store.OpenReadOnly(repoPath)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := ticket.ReadFile(ticketArgs[0])
	if err != nil {
		return err
	}

	tk, err := ticket.Load(st, id)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return perr.Wrap(perr.IO, err, "creating output file "+outPath)
	}
	defer out.Close()

	warn := func(msg string) { logrus.Warn(msg) }
	if err := elfasm.Assemble(st, tk, out, warn); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}
