package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagegen/cmd/pagegen/ui"
	"pagegen/internal/types"
	"pagegen/internal/workspace"
)

var (
	auditHTML    string
	auditCSS     string
	auditTS      string
	auditRequest string
	auditWrite   bool
	auditJSON    bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the verifier/refiner loop on existing page files",
	Long: `Audits an HTML/SCSS/TypeScript page and prints the refined result.

Example:
  pagegen audit --html login.component.html --ts login.component.ts \
    --css login.component.scss --request "a login page" --write`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditHTML, "html", "", "HTML template file")
	auditCmd.Flags().StringVar(&auditCSS, "css", "", "SCSS/CSS file")
	auditCmd.Flags().StringVar(&auditTS, "ts", "", "TypeScript component file")
	auditCmd.Flags().StringVarP(&auditRequest, "request", "r", "", "The request the page should satisfy")
	auditCmd.Flags().BoolVarP(&auditWrite, "write", "w", false, "Overwrite the input files with the refined code")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the full result as JSON")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditHTML == "" && auditCSS == "" && auditTS == "" {
		return errors.New("at least one of --html, --css or --ts is required")
	}

	var code types.CodeBundle
	for _, f := range []struct {
		path string
		dst  *string
	}{{auditHTML, &code.HTML}, {auditCSS, &code.CSS}, {auditTS, &code.TS}} {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.path, err)
		}
		*f.dst = string(data)
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	request, err := requestOrSaved(ctx, a.workspace, auditRequest)
	if err != nil {
		return err
	}

	logger.Info("Auditing page", zap.String("request", request))
	res := a.auditor.Run(ctx, code, request)

	if auditJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.DefaultStyles().AuditResult(res))

	if auditWrite {
		for _, f := range []struct {
			path, content string
		}{{auditHTML, res.Code.HTML}, {auditCSS, res.Code.CSS}, {auditTS, res.Code.TS}} {
			if f.path == "" {
				continue
			}
			if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.path, err)
			}
		}
	}
	return nil
}

// requestOrSaved returns given, or the page request saved by "pagegen select"
// when given is blank.
func requestOrSaved(ctx context.Context, ws *workspace.Workspace, given string) (string, error) {
	if strings.TrimSpace(given) != "" {
		return given, nil
	}
	saved, err := ws.LoadPageRequest(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(saved) == "" {
		return "", errors.New("--request is required when no page request is saved")
	}
	return saved, nil
}
