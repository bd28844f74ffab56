package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagegen/cmd/pagegen/ui"
	"pagegen/internal/components"
	"pagegen/internal/types"
)

var (
	analyzeReadme string
	readmeRaw     bool
	readmeOut     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dir>",
	Short: "Analyze a component library and store its metadata",
	Long: `Walks dir for *.component.ts files under the configured path segments
(common and shared by default), asks the model to describe each one, and
saves the resulting metadata for selection and generation.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var selectCmd = &cobra.Command{
	Use:   "select <request>",
	Short: "Mark the stored components a page request needs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSelect,
}

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "Inspect stored component metadata",
}

var componentsReadmeCmd = &cobra.Command{
	Use:   "readme",
	Short: "Render the stored component metadata as a README",
	RunE:  runComponentsReadme,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReadme, "readme", "", "Also write a markdown README to this path")
	componentsReadmeCmd.Flags().BoolVar(&readmeRaw, "raw", false, "Print markdown without terminal rendering")
	componentsReadmeCmd.Flags().StringVarP(&readmeOut, "output", "o", "", "Write the markdown to a file instead")
	componentsCmd.AddCommand(componentsReadmeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	logger.Info("Analyzing components", zap.String("dir", args[0]))
	metadata, err := a.analyzer.AnalyzeDir(ctx, args[0])
	if err != nil {
		return err
	}
	if len(metadata) == 0 {
		return fmt.Errorf("no components found under %s", args[0])
	}
	if err := a.workspace.SaveComponents(ctx, metadata); err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("Analyzed %d components", len(metadata))))
	for _, c := range metadata {
		fmt.Fprintln(out, styles.KeyValue(c.Key(), c.Description))
	}

	if analyzeReadme != "" {
		if err := os.WriteFile(analyzeReadme, []byte(components.Readme(metadata)), 0644); err != nil {
			return fmt.Errorf("failed to write README: %w", err)
		}
	}
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	request := joinArgs(args)
	metadata, err := a.workspace.LoadComponents(ctx)
	if err != nil {
		return err
	}
	if len(metadata) == 0 {
		return fmt.Errorf("no component metadata stored; run \"pagegen analyze <dir>\" first")
	}

	sel := a.selector.Select(ctx, request, metadata)
	updated := components.ApplySelection(sel, metadata)
	if err := a.workspace.SaveComponents(ctx, updated); err != nil {
		return err
	}
	if err := a.workspace.SavePageRequest(ctx, request); err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("Selected %d of %d components", len(sel.SelectedComponents), len(metadata))))
	for _, c := range updated {
		if c.Required {
			fmt.Fprintln(out, styles.KeyValue(c.Key(), c.Reasoning))
		}
	}
	return nil
}

func runComponentsReadme(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	metadata, err := a.workspace.LoadComponents(ctx)
	if err != nil {
		return err
	}
	md := components.Readme(metadata)

	switch {
	case readmeOut != "":
		return os.WriteFile(readmeOut, []byte(md), 0644)
	case readmeRaw:
		fmt.Fprint(cmd.OutOrStdout(), md)
	default:
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(md, 100))
	}
	return nil
}

func requiredComponents(all []types.ComponentMetadata) []types.ComponentMetadata {
	var out []types.ComponentMetadata
	for _, c := range all {
		if c.Required {
			out = append(out, c)
		}
	}
	return out
}
