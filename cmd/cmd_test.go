package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/services"
)

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// setupProject scaffolds a project in a temp dir and makes it the working
// directory so relative paths in the configuration resolve against it.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := services.NewInitService().InitProject(services.InitOptions{ProjectDir: dir})
	require.NoError(t, err)
	t.Chdir(dir)
	return filepath.Join(dir, services.ConfigFile)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"compile", "render", "cache", "serve", "bundle", "init", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestInvalidLogLevelRejected(t *testing.T) {
	_, err := executeCommand(t, "version", "--log-level", "loud")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	out, err = executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = executeCommand(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")

	out, err := executeCommand(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "created templates/index.tpl")
	assert.FileExists(t, filepath.Join(dir, services.ConfigFile))

	out, err = executeCommand(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped templates/index.tpl")
}

func TestCompileCommand(t *testing.T) {
	cfg := setupProject(t)

	_, err := executeCommand(t, "--config", cfg, "compile")
	assert.Error(t, err)

	out, err := executeCommand(t, "--config", cfg, "compile", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "index.tpl")
	assert.Contains(t, out, "0 failed")
	assert.Contains(t, out, "header.tpl (fragment)")
	assert.FileExists(t, filepath.Join("cache", "Templates", "index.tpl.gotmpl"))
}

func TestCompileCommandReportsFailures(t *testing.T) {
	cfg := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join("templates", "broken.tpl"), []byte("{{if $x}}open"), 0o644))

	out, err := executeCommand(t, "--config", cfg, "compile", "index.tpl", "broken.tpl")
	require.Error(t, err)
	assert.Contains(t, out, "broken.tpl")
	assert.Contains(t, out, "1 compiled, 1 failed")
}

func TestRenderCommand(t *testing.T) {
	cfg := setupProject(t)

	out, err := executeCommand(t, "--config", cfg, "render", "index.tpl", "--set", "name=Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello, Ada!")
	assert.Contains(t, out, "<li>2</li>")

	vars := filepath.Join(t.TempDir(), "vars.yml")
	require.NoError(t, os.WriteFile(vars, []byte("name: Grace\n"), 0o644))
	target := filepath.Join(t.TempDir(), "index.html")

	_, err = executeCommand(t, "--config", cfg, "render", "index.tpl", "--vars", vars, "--output", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hello, Grace!")

	_, err = executeCommand(t, "--config", cfg, "render", "index.tpl", "--set", "noequals")
	assert.Error(t, err)
}

func TestCacheCommands(t *testing.T) {
	cfg := setupProject(t)
	_, err := executeCommand(t, "--config", cfg, "compile", "index.tpl")
	require.NoError(t, err)

	out, err := executeCommand(t, "--config", cfg, "cache", "list", "-o", "json")
	require.NoError(t, err)
	var rows []artifactRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "index.tpl", rows[0].Page)
	assert.Equal(t, []string{"header", "footer"}, rows[0].Dependencies)

	out, err = executeCommand(t, "--config", cfg, "cache", "stats", "-o", "yaml")
	require.NoError(t, err)
	var usage []cache.Usage
	require.NoError(t, yaml.Unmarshal([]byte(out), &usage))
	require.Len(t, usage, 2)
	assert.Equal(t, 2, usage[0].Files)

	out, err = executeCommand(t, "--config", cfg, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared Templates")

	out, err = executeCommand(t, "--config", cfg, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No compiled artifacts")

	_, err = executeCommand(t, "--config", cfg, "cache", "list", "-o", "xml")
	assert.Error(t, err)

	_, err = executeCommand(t, "--config", cfg, "cache", "clear", "../outside")
	assert.Error(t, err)
}

func TestBundleCommand(t *testing.T) {
	cfg := setupProject(t)

	out, err := executeCommand(t, "--config", cfg, "bundle")
	require.NoError(t, err)
	assert.Contains(t, out, "javascript.min.js")

	data, err := os.ReadFile(filepath.Join("cache", "JavaScript", "javascript.min.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `console.log("tplc ready")`)
}

func TestCutBinding(t *testing.T) {
	testCases := []struct {
		pair  string
		name  string
		value string
		ok    bool
	}{
		{pair: "name=Ada", name: "name", value: "Ada", ok: true},
		{pair: "$name=Ada", name: "name", value: "Ada", ok: true},
		{pair: "expr=a=b", name: "expr", value: "a=b", ok: true},
		{pair: "empty=", name: "empty", value: "", ok: true},
		{pair: "=x"},
		{pair: "novalue"},
	}

	for _, tc := range testCases {
		t.Run(tc.pair, func(t *testing.T) {
			name, value, ok := cutBinding(tc.pair)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.value, value)
		})
	}
}

func TestValidators(t *testing.T) {
	check := oneOf(formatTable, formatJSON)
	assert.NoError(t, check("json"))
	assert.Error(t, check("JSON"))

	assert.NoError(t, validatePort(0))
	assert.NoError(t, validatePort(8080))
	assert.Error(t, validatePort(-1))
	assert.Error(t, validatePort(70000))
}
