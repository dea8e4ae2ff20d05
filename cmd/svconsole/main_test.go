package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/svconsole/pkg/config"
	"github.com/modoterra/svconsole/pkg/transport/httpapi/apitest"
)

// run executes the root command with args, resetting flag state left over
// from earlier runs and keeping config lookups inside temp dirs.
func run(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv(config.EnvServer, "")
	// testing.T.Chdir requires Go 1.24; restore the working directory manually.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	serverURL, configPath, logLevel = "", "", ""
	loginUser, passwordStdin = "", false
	statusJSON, activityYes = false, false
	configInitOutput, configInitForce = "", false

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "svconsole dev")
}

func TestTokenizeCommand(t *testing.T) {
	out, _, err := run(t, "", "tokenize", `add_user bob "p w" ''`)
	require.NoError(t, err)
	assert.Equal(t, "0\tadd_user\n1\tbob\n2\t'p w'\n3\t''\n", out)

	_, _, err = run(t, "", "tokenize", `say "oops`)
	assert.Error(t, err)
}

func TestExecAnonymous(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	out, _, err := run(t, "", "--server", srv.URL, "exec", "help")
	require.NoError(t, err)
	assert.Contains(t, out, "login")

	out, _, err = run(t, "", "--server", srv.URL, "exec", "whoami")
	require.Error(t, err)
	assert.Contains(t, out, "error: Not logged in")
}

func TestExecWithLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	out, _, err := run(t, "secret\n", "--server", srv.URL, "exec", "--user", "admin", "--password-stdin", "--", "change_password", "new pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Password changed successfully")

	got := srv.Commands()
	require.Len(t, got, 2)
	assert.Equal(t, "login", got[0].Command)
	assert.Equal(t, []string{"new pw"}, got[1].Parameters)
}

func TestExecTokenizesSingleArgument(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, _, err := run(t, "", "--server", srv.URL, "exec", `add_user bob "p w"`)
	require.Error(t, err, "add_user is unknown to the fake server")

	got := srv.Commands()
	require.Len(t, got, 1)
	assert.Equal(t, "add_user", got[0].Command)
	assert.Equal(t, []string{"bob", "p w"}, got[0].Parameters)
}

func TestExecLoginNeedsPassword(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, _, err := run(t, "", "--server", srv.URL, "exec", "--user", "admin", "whoami")
	require.Error(t, err)
	assert.Empty(t, srv.Commands())

	_, _, err = run(t, "wrong\n", "--server", srv.URL, "exec", "--user", "admin", "--password-stdin", "whoami")
	require.Error(t, err)
	assert.Len(t, srv.Commands(), 1, "a failed login stops before the command")
}

func TestStatusCommand(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	out, _, err := run(t, "", "--server", srv.URL, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Online")
	assert.Contains(t, out, "Not authenticated")
	assert.Contains(t, out, "Not logged in")

	out, _, err = run(t, "secret\n", "--server", srv.URL, "status", "--user", "admin", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as: admin")
	assert.Contains(t, out, "5050")
	assert.Contains(t, out, "12.5%")
	assert.Contains(t, out, "512 MB")
}

func TestStatusJSON(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	out, _, err := run(t, "secret\n", "--server", srv.URL, "status", "--json", "--user", "admin", "--password-stdin")
	require.NoError(t, err)

	var got statusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Online)
	assert.True(t, got.Authenticated)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, "5050", got.Port)
	assert.Equal(t, 3, got.Connections)
}

func TestStatusUnreachable(t *testing.T) {
	srv := apitest.NewServer()
	url := srv.URL
	srv.Close()

	out, _, err := run(t, "", "--server", url, "status", "--json")
	require.Error(t, err)

	var got statusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Online)
	assert.NotEmpty(t, got.Message)
}

func TestActivityCommand(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, _, err := run(t, "", "--server", srv.URL, "activity", "dance")
	require.Error(t, err)
	assert.Empty(t, srv.Activities())

	_, _, err = run(t, "secret\n", "--server", srv.URL, "activity", "reboot", "--user", "admin", "--password-stdin")
	require.Error(t, err, "reboot needs --yes")
	assert.Empty(t, srv.Activities())

	out, _, err := run(t, "secret\n", "--server", srv.URL, "activity", "reboot", "--yes", "--user", "admin", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "reboot accepted")
	assert.Equal(t, []string{"reboot"}, srv.Activities())
}

func TestActivityNotLoggedIn(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	out, _, err := run(t, "", "--server", srv.URL, "activity", "stop")
	require.Error(t, err)
	assert.Contains(t, out, "You are not logged in")
}

func TestConfigInitValidateShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svconsole.yaml")

	out, _, err := run(t, "", "--server", "http://10.0.0.5:8080", "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, _, err = run(t, "", "config", "init", "--output", path)
	require.Error(t, err, "existing file needs --force")

	out, _, err = run(t, "", "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	out, _, err = run(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# from "+path)
	assert.Contains(t, out, "http://10.0.0.5:8080")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 2\nserver:\n  url: ftp://x\n"), 0o644))

	_, errOut, err := run(t, "", "config", "validate", path)
	require.Error(t, err)
	assert.Contains(t, errOut, "2 error(s)")
	assert.Contains(t, errOut, "  • ")
}

func TestBadServerFlag(t *testing.T) {
	_, _, err := run(t, "", "--server", "ftp://nowhere", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
