package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"adacta/internal/api"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review ID...",
		Short: "Mark documents as reviewed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range args {
				if _, err := client.PatchManifest(cmd.Context(), id, api.ManifestPatch{MarkReviewed: true}); err != nil {
					return fmt.Errorf("review %s: %w", id, err)
				}
				fmt.Fprintf(out, "Reviewed %s\n", id)
			}
			return nil
		},
	}
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	var add []string
	var remove []string
	var set []string

	cmd := &cobra.Command{
		Use:   "tag ID",
		Short: "Adjust a document's tags and properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := api.ManifestPatch{
				AddTags:    add,
				RemoveTags: remove,
			}
			if len(set) > 0 {
				patch.SetProperties = make(map[string]string, len(set))
				for _, pair := range set {
					key, value, ok := strings.Cut(pair, "=")
					if !ok || strings.TrimSpace(key) == "" {
						return fmt.Errorf("invalid property %q (expected key=value)", pair)
					}
					patch.SetProperties[strings.TrimSpace(key)] = value
				}
			}
			if len(patch.AddTags) == 0 && len(patch.RemoveTags) == 0 && len(patch.SetProperties) == 0 {
				return fmt.Errorf("nothing to change (use --add, --remove, or --set)")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			bundle, err := client.PatchManifest(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printBundleDetail(cmd.OutOrStdout(), bundle)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&add, "add", "a", nil, "Tag to add (repeatable)")
	cmd.Flags().StringArrayVarP(&remove, "remove", "r", nil, "Tag to remove (repeatable)")
	cmd.Flags().StringArrayVarP(&set, "set", "s", nil, "Property to set as key=value (repeatable)")
	return cmd
}
