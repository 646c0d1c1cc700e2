package root

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/heartpoints/internal/features/admin"
	"serotonyl.ru/heartpoints/internal/middleware"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPassword_Arg(t *testing.T) {
	out, err := run(t, "", "hash-password", "s3cret")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, admin.VerifyPassword("s3cret", hash))
	assert.False(t, admin.VerifyPassword("other", hash))
}

func TestHashPassword_Stdin(t *testing.T) {
	out, err := run(t, "from-stdin\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, admin.VerifyPassword("from-stdin", strings.TrimSpace(out)))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := run(t, "", "hash-password")
	assert.Error(t, err)
}

func TestClearUser_BadID(t *testing.T) {
	_, err := run(t, "", "clear-user", "abc", "--password", "x")
	assert.EqualError(t, err, "user_id должен быть положительным числом")
}

func TestClearUser_PasswordRequired(t *testing.T) {
	_, err := run(t, "", "clear-user", "5")
	assert.Error(t, err)
}

func TestIssueToken(t *testing.T) {
	out, err := run(t, "", "issue-token", "42", "--secret", "s", "--ttl", "1h")
	require.NoError(t, err)

	id, ok := middleware.NewAuth("s").ParseToken(strings.TrimSpace(out))
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = middleware.NewAuth("other").ParseToken(strings.TrimSpace(out))
	assert.False(t, ok)
}

func TestIssueToken_NoSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	_, err := run(t, "", "issue-token", "42")
	assert.EqualError(t, err, "нужен --secret или AUTH_SECRET")
}
