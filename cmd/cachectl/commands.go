package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"findoc-gateway/internal/format"
)

var stdout io.Writer = os.Stdout

type pointerCmd struct{}

func (*pointerCmd) Name() string     { return "pointer" }
func (*pointerCmd) Synopsis() string { return "show the current document pointer" }
func (*pointerCmd) Usage() string {
	return `cachectl pointer

  Prints the most recently analyzed document and its company.
`
}
func (*pointerCmd) SetFlags(*flag.FlagSet) {}

func (*pointerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	scopes, err := openScopes(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer scopes.Close()

	ptr, ok := scopes.Coordinator.Current(ctx)
	if !ok {
		fmt.Fprintln(stdout, "no current document")
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(stdout, "document: %s\n", ptr.DocumentID)
	if ptr.CompanyName != "" {
		fmt.Fprintf(stdout, "company:  %s\n", ptr.CompanyName)
	}
	if up, ok := scopes.Coordinator.LatestUpload(ctx); ok && up.Analysis.DocumentID == ptr.DocumentID {
		fmt.Fprintf(stdout, "file:     %s (%s)\n", up.File.Name, format.FileSize(up.File.Size))
		fmt.Fprintf(stdout, "kpis:     %d\n", len(up.Analysis.KpiPeriods))
	}
	return subcommands.ExitSuccess
}

type filesCmd struct {
	remove string
}

func (*filesCmd) Name() string     { return "files" }
func (*filesCmd) Synopsis() string { return "list or prune the fallback file list" }
func (*filesCmd) Usage() string {
	return `cachectl files [-rm <id>]

  Lists the uploads recorded in the durable scope, newest first.
`
}

func (c *filesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.remove, "rm", "", "Remove the document with this id from the list.")
}

func (c *filesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	scopes, err := openScopes(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer scopes.Close()

	if id := strings.TrimSpace(c.remove); id != "" {
		if !scopes.Coordinator.RemoveFile(ctx, id) {
			fmt.Fprintf(os.Stderr, "file %s not found\n", id)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "removed %s\n", id)
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tCOMPANY\tUPLOADED")
	for _, f := range scopes.Coordinator.Files(ctx) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Name, format.FileSize(f.Size), f.Company, f.UploadedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type clearCmd struct {
	session string
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "clear a session's cache namespace" }
func (*clearCmd) Usage() string {
	return `cachectl clear -session <id>

  Removes every cached view of the session and the durable pointer.
  The fallback file list is kept.
`
}

func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.session, "session", "", "Session id (X-Session-Id) to clear.")
}

func (c *clearCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.session) == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	scopes, err := openScopes(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer scopes.Close()

	scopes.Coordinator.ClearNamespace(ctx, c.session)
	fmt.Fprintf(stdout, "cleared session %s\n", c.session)
	return subcommands.ExitSuccess
}
