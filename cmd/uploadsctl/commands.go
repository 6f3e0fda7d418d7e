package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-recruit-uploads/internal/bootstrap"
)

func newListCmd(open appOpener, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print an owner's uploads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, opts, func(ctx context.Context, a *bootstrap.App, owner string) error {
				rows, err := a.Uploads.List(ctx, owner)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, rows)
			})
		},
	}
}

func newSyncCmd(open appOpener, opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace an owner's uploads with the list in a JSON or YAML file",
		Long: "sync reconciles the stored uploads to exactly the list in --file. " +
			"Entries without an id are created, entries with a known id are updated, " +
			"and stored uploads missing from the file are deleted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readTargetList(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(cmd, open, opts, func(ctx context.Context, a *bootstrap.App, owner string) error {
				inputs, err := decodeTargets(raw)
				if err != nil {
					return err
				}
				res, err := a.Uploads.Reconcile(ctx, owner, inputs)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(),
					"synced %s: %d created, %d updated, %d deleted\n",
					owner, len(res.Plan.Create), len(res.Plan.Update), len(res.Plan.Delete))
				return render(cmd.OutOrStdout(), opts.output, res.Uploads)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "target list (.json, .yaml, .yml, or - for JSON on stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRmCmd(open appOpener, opts *rootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete one upload and print what remains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, opts, func(ctx context.Context, a *bootstrap.App, owner string) error {
				rest, removed, err := a.Uploads.Delete(ctx, owner, id)
				if err != nil {
					return err
				}
				if removed {
					color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "removed %s\n", id)
				} else {
					color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "%s not found, nothing removed\n", id)
				}
				return render(cmd.OutOrStdout(), opts.output, rest)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "attachment id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
