package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/compensation/internal/app"
	"github.com/odyssey-erp/compensation/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testRuntime() (*Runtime, error) {
	return &Runtime{Config: &app.Config{
		JWTSecret:    testSecret,
		JWTIssuer:    "compensation",
		JWTTTL:       time.Hour,
		ExportLocale: "en",
	}}, nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(testRuntime)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenIssue(t *testing.T) {
	out, err := execute(t, "token", "issue", "--user-id", "9", "--username", "ops", "--role", "admin")
	require.NoError(t, err)

	var body struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.NotEmpty(t, body.Token)

	tokens, err := auth.NewTokenService(testSecret, "compensation", time.Hour)
	require.NoError(t, err)
	principal, err := tokens.Verify(body.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 9, principal.UserID)
	assert.Equal(t, "admin", principal.Role)
}

func TestTokenIssueRejectsBadInput(t *testing.T) {
	_, err := execute(t, "token", "issue")
	assert.Error(t, err)

	_, err = execute(t, "token", "issue", "--user-id", "1", "--role", "root")
	assert.Error(t, err)
}

func TestCalculateValidatesFlagsBeforeConnecting(t *testing.T) {
	_, err := execute(t, "calculate", "--to", "2024-01-31")
	assert.ErrorContains(t, err, "--from is required")

	_, err = execute(t, "calculate", "--from", "01/01/2024", "--to", "2024-01-31")
	assert.ErrorContains(t, err, "--from must be YYYY-MM-DD")

	_, err = execute(t, "report", "--from", "2024-01-01", "--to", "2024-01-31", "--format", "pdf")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestLoadFailureStopsCommand(t *testing.T) {
	root := NewRootCommand(func() (*Runtime, error) { return nil, errors.New("no config") })
	root.SetArgs([]string{"token", "issue", "--user-id", "1"})
	assert.ErrorContains(t, root.Execute(), "no config")
}

func TestWriteOutput(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, writeOutput(&stdout, "", "csv", func(w io.Writer) error {
		_, err := w.Write([]byte("a,b\n"))
		return err
	}))
	assert.Equal(t, "a,b\n", stdout.String())

	assert.Error(t, writeOutput(&stdout, "", "xlsx", nil))

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeOutput(&stdout, path, "csv", func(w io.Writer) error {
		_, err := w.Write([]byte("x"))
		return err
	}))
	assert.FileExists(t, path)
}
