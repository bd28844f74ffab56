package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagegen/cmd/pagegen/ui"
	"pagegen/internal/generation"
)

var generateOut string

var generateCmd = &cobra.Command{
	Use:   "generate <request>",
	Short: "Generate and audit a page from the selected components",
	Long: `Generates a page for request using the components marked as required
(see "pagegen select"), runs the audit loop on the draft and stores the
result as the current page.

Example:
  pagegen generate "a user list with search and pagination" --out src/app/pages`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "Directory to write the component files into")
}

func runGenerate(cmd *cobra.Command, args []string) error {
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
	required := requiredComponents(metadata)
	logger.Info("Generating page",
		zap.String("request", request),
		zap.Int("components", len(required)))

	res, err := a.generator.Generate(ctx, request, required)
	if err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.KeyValue("Component", res.Page.ComponentName))
	fmt.Fprintln(out, styles.KeyValue("Selector", res.Page.Selector))
	fmt.Fprint(out, styles.Warnings(res.Warnings))
	fmt.Fprint(out, styles.AuditResult(res.Audit))

	if generateOut == "" {
		return nil
	}
	paths, err := writePage(generateOut, res.Page)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, styles.Muted.Render("wrote "+p))
	}
	return nil
}

// writePage writes the page as <path_name>/<path_name>.component.{html,scss,ts}.
func writePage(root string, page generation.Page) ([]string, error) {
	name := page.PathName
	if name == "" || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		name = "generated-page"
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var written []string
	for ext, content := range map[string]string{
		"html": page.HTMLCode,
		"scss": page.SCSSCode,
		"ts":   page.TSCode,
	} {
		path := filepath.Join(dir, name+".component."+ext)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	sort.Strings(written)
	return written, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
