package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"smoothieq/internal/ipc"
)

func newRecipeCommand(ctx *commandContext) *cobra.Command {
	recipeCmd := &cobra.Command{
		Use:   "recipe",
		Short: "Inspect and select smoothie-rs recipes",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recipes found in the smoothie-rs installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Recipes()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Recipes) == 0 {
					fmt.Fprintln(out, "No recipes found")
				}
				for _, recipe := range resp.Recipes {
					marker := " "
					if recipe == resp.Selected {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s\n", marker, recipe)
				}
				if resp.Selected != "" {
					fmt.Fprintf(out, "Selected: %s\n", resp.Selected)
				}
				return nil
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <path>",
		Short: "Select the recipe for new and pending tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setSelection(cmd, ctx, args[0], (*ipc.Client).SetRecipe, "Recipe")
		},
	}

	recipeCmd.AddCommand(listCmd, setCmd)
	return recipeCmd
}

func newOutputCommand(ctx *commandContext) *cobra.Command {
	outputCmd := &cobra.Command{
		Use:   "output",
		Short: "Select the output folder",
	}
	outputCmd.AddCommand(&cobra.Command{
		Use:   "set <dir>",
		Short: "Select the output folder for new and pending tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setSelection(cmd, ctx, args[0], (*ipc.Client).SetOutputDir, "Output folder")
		},
	})
	return outputCmd
}

func setSelection(cmd *cobra.Command, ctx *commandContext, value string, call func(*ipc.Client, string) (*ipc.PathResponse, error), label string) error {
	abs, err := filepath.Abs(value)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", value, err)
	}
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := call(client, abs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s (%d pending tasks updated)\n", label, resp.Path, resp.Updated)
		return nil
	})
}
