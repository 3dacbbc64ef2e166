package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"adacta/internal/api"
)

const displayTimeFormat = "2006-01-02 15:04"

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload documents to the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, arg := range args {
				file, err := os.Open(arg)
				if err != nil {
					return fmt.Errorf("open %q: %w", arg, err)
				}
				bundle, err := client.Upload(cmd.Context(), filepath.Base(arg), file, tags)
				file.Close()
				if err != nil {
					return fmt.Errorf("upload %q: %w", arg, err)
				}
				fmt.Fprintf(out, "Uploaded %s as %s\n", filepath.Base(arg), bundle.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "Tag to attach (repeatable)")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			bundles, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, bundles)
			}
			out := cmd.OutOrStdout()
			if len(bundles) == 0 {
				fmt.Fprintln(out, "Archive is empty")
				return nil
			}
			fmt.Fprintln(out, renderBundleTable(bundles))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Display one document's manifest and fragments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			bundle, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, bundle)
			}
			printBundleDetail(cmd.OutOrStdout(), bundle)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "fetch ID FRAGMENT",
		Short: "Download a fragment (document.pdf, document.txt, thumbnail.png, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			body, err := client.Fragment(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			defer body.Close()

			if outputPath == "" || outputPath == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), body)
				return err
			}

			file, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("create %q: %w", outputPath, err)
			}
			if _, err := io.Copy(file, body); err != nil {
				file.Close()
				return fmt.Errorf("write %q: %w", outputPath, err)
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to stdout)")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"delete"},
		Short:   "Delete documents from the archive",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range args {
				if err := client.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(out, "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func newRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue ID",
		Short: "Revive a document's dead-lettered pipeline stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			revived, err := client.Requeue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if revived == 0 {
				fmt.Fprintln(out, "No dead-lettered stages to revive")
				return nil
			}
			fmt.Fprintf(out, "Revived %d stage(s)\n", revived)
			return nil
		},
	}
}

func renderBundleTable(bundles []api.Bundle) string {
	headers := []string{"ID", "UPLOADED", "REVIEWED", "TAGS"}
	rows := make([][]string, 0, len(bundles))
	for _, bundle := range bundles {
		rows = append(rows, []string{
			bundle.ID,
			bundle.Uploaded.Local().Format(displayTimeFormat),
			yesNo(bundle.Reviewed != nil),
			strings.Join(bundle.Tags, ", "),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft})
}

func printBundleDetail(out io.Writer, bundle api.Bundle) {
	fmt.Fprintf(out, "ID:        %s\n", bundle.ID)
	fmt.Fprintf(out, "Uploaded:  %s\n", bundle.Uploaded.Local().Format(displayTimeFormat))
	if bundle.Reviewed != nil {
		fmt.Fprintf(out, "Reviewed:  %s\n", bundle.Reviewed.Local().Format(displayTimeFormat))
	} else {
		fmt.Fprintf(out, "Reviewed:  no\n")
	}
	fmt.Fprintf(out, "Revision:  %s\n", strconv.FormatInt(bundle.Revision, 10))
	if len(bundle.Tags) > 0 {
		fmt.Fprintf(out, "Tags:      %s\n", strings.Join(bundle.Tags, ", "))
	}
	if len(bundle.Properties) > 0 {
		keys := make([]string, 0, len(bundle.Properties))
		for key := range bundle.Properties {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "Properties:")
		for _, key := range keys {
			fmt.Fprintf(out, "  %s = %s\n", key, bundle.Properties[key])
		}
	}
	if len(bundle.Fragments) > 0 {
		fmt.Fprintf(out, "Fragments: %s\n", strings.Join(bundle.Fragments, ", "))
	}
}

func formatAge(ts time.Time) string {
	age := time.Since(ts)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
