package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/internal/generation"
	"pagegen/internal/store"
	"pagegen/internal/types"
	"pagegen/internal/workspace"
)

func TestRootCommandTree(t *testing.T) {
	want := []string{"analyze", "audit", "components", "generate", "select", "serve"}
	var got []string
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
	}
	assert.ElementsMatch(t, want, got)

	readme, _, err := rootCmd.Find([]string{"components", "readme"})
	require.NoError(t, err)
	assert.Equal(t, "readme", readme.Name())
}

func TestComponentsReadme_FromStore(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	kv, err := store.NewFileStore(dataDir)
	require.NoError(t, err)
	require.NoError(t, workspace.New(kv).SaveComponents(context.Background(), []types.ComponentMetadata{
		{Name: "AppButtonComponent", Description: "A button", IDName: "app-button", Required: true, Reasoning: "submit"},
	}))
	require.NoError(t, kv.Close())

	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("store:\n  backend: file\n  dir: "+dataDir+"\nlogging:\n  level: error\n"), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgFile, "components", "readme", "--raw"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		readmeRaw = false
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Total Components: 1")
	assert.Contains(t, out.String(), "AppButtonComponent")
}

func TestAudit_RequiresInput(t *testing.T) {
	auditHTML, auditCSS, auditTS = "", "", ""
	err := runAudit(auditCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--html")
}

func TestWritePage(t *testing.T) {
	root := t.TempDir()
	paths, err := writePage(root, generation.Page{
		PathName: "users-page",
		HTMLCode: "<p>users</p>",
		SCSSCode: "p{}",
		TSCode:   "export class UsersPageComponent {}",
	})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(root, "users-page", "users-page.component.html"), paths[0])

	data, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "export class UsersPageComponent {}", string(data))

	paths, err = writePage(root, generation.Page{PathName: "../escape"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "generated-page", "generated-page.component.html"), paths[0])
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "a user list", joinArgs([]string{" a", "user", "list "}))

	all := []types.ComponentMetadata{{Name: "A", Required: true}, {Name: "B"}}
	req := requiredComponents(all)
	require.Len(t, req, 1)
	assert.Equal(t, "A", req[0].Name)
}

func TestRequestOrSaved(t *testing.T) {
	ctx := context.Background()
	kv, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	ws := workspace.New(kv)

	_, err = requestOrSaved(ctx, ws, "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--request")

	got, err := requestOrSaved(ctx, ws, "a login page")
	require.NoError(t, err)
	assert.Equal(t, "a login page", got)

	require.NoError(t, ws.SavePageRequest(ctx, "a users page"))
	got, err = requestOrSaved(ctx, ws, "")
	require.NoError(t, err)
	assert.Equal(t, "a users page", got)
}
