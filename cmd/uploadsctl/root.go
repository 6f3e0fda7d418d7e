package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-recruit-uploads/internal/bootstrap"
	"github.com/tbourn/go-recruit-uploads/internal/services"
	"github.com/tbourn/go-recruit-uploads/internal/sysutil"
)

// EnvOwner supplies --owner when the flag is omitted.
const EnvOwner = "UPLOADS_OWNER"

type appOpener func() (*bootstrap.App, error)

type rootOptions struct {
	owner    string
	output   string
	timeout  time.Duration
	logLevel string
}

func newRootCmd(open appOpener) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "uploadsctl",
		Short:         "Inspect and reconcile candidate uploads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			l := sysutil.NewLogger(cmd.ErrOrStderr(), opts.logLevel, true)
			cmd.SetContext(l.WithContext(cmd.Context()))
			switch opts.output {
			case outputTable, outputJSON, outputYAML:
				return nil
			}
			return fmt.Errorf("unknown output format %q (want table, json or yaml)", opts.output)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.owner, "owner", "", "owner id (defaults to $"+EnvOwner+")")
	pf.StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline for the command")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newListCmd(open, opts),
		newSyncCmd(open, opts),
		newRmCmd(open, opts),
	)
	return root
}

// execute runs cmd and prints any error in red. It returns the exit code.
func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "error: %s\n", describe(err))
		return 1
	}
	return 0
}

// resolveOwner returns --owner or the environment fallback.
func (o *rootOptions) resolveOwner() (string, error) {
	owner := strings.TrimSpace(sysutil.FirstNonEmpty(o.owner, os.Getenv(EnvOwner)))
	if owner == "" {
		return "", errors.New("--owner is required")
	}
	return owner, nil
}

// withApp opens the application, runs fn under the command deadline and
// closes it again.
func withApp(cmd *cobra.Command, open appOpener, opts *rootOptions, fn func(ctx context.Context, a *bootstrap.App, owner string) error) error {
	owner, err := opts.resolveOwner()
	if err != nil {
		return err
	}
	a, err := open()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	if err := fn(ctx, a, owner); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("cmd", cmd.Name()).Msg("command failed")
		return err
	}
	return nil
}

// describe adds a recovery hint to errors the operator can act on.
func describe(err error) string {
	if errors.Is(err, services.ErrPartialApply) {
		return err.Error() + " (run sync again to finish)"
	}
	return err.Error()
}
