package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"adacta/internal/api"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var tags []string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search [QUERY...]",
		Short: "Search the document catalog by text and tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			results, err := client.Search(cmd.Context(), strings.Join(args, " "), tags, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching documents")
				return nil
			}
			fmt.Fprintln(out, renderBundleTable(results))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "Require a tag (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newInboxCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List documents awaiting review, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			entries, err := client.Inbox(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Inbox is empty")
				return nil
			}
			fmt.Fprintln(out, renderInboxTable(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func renderInboxTable(entries []api.Bundle) string {
	headers := []string{"ID", "UPLOADED", "AGE", "TAGS"}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.ID,
			entry.Uploaded.Local().Format(displayTimeFormat),
			formatAge(entry.Uploaded),
			strings.Join(entry.Tags, ", "),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
}
