package googleauth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxagent/inboxagent/internal/tools"
)

func registryWith(t *testing.T, ts *Toolset) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, tool := range ts.Tools() {
		require.NoError(t, r.Register(tool), "register %s", tool.Name)
	}
	return r
}

func TestGetAuthURL(t *testing.T) {
	r := registryWith(t, New())

	out, err := r.Execute(context.Background(), "google_get_auth_url", map[string]any{
		"account": "work",
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"work"`)
	assert.Contains(t, out, "google_save_auth_code")
}

func TestSaveAuthCode(t *testing.T) {
	var gotAccount, gotCode string
	var authorized []string

	ts := New(
		WithExchanger(func(ctx context.Context, account, authCode string) error {
			gotAccount, gotCode = account, authCode
			return nil
		}),
		WithOnAuthorized(func(ctx context.Context, account string) {
			authorized = append(authorized, account)
		}),
	)
	r := registryWith(t, ts)

	out, err := r.Execute(context.Background(), "google_save_auth_code", map[string]any{
		"auth_code": "4/0abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "default", gotAccount)
	assert.Equal(t, "4/0abc", gotCode)
	assert.Equal(t, []string{"default"}, authorized)
	assert.Contains(t, out, "Authorization successful")
}

func TestSaveAuthCodeExchangeFails(t *testing.T) {
	ts := New(
		WithExchanger(func(ctx context.Context, account, authCode string) error {
			return errors.New("invalid grant")
		}),
		WithOnAuthorized(func(ctx context.Context, account string) {
			t.Error("onAuthorized should not run on failure")
		}),
	)
	r := registryWith(t, ts)

	_, err := r.Execute(context.Background(), "google_save_auth_code", map[string]any{
		"account":   "work",
		"auth_code": "bad",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "work")
}

func TestSaveAuthCodeRequiresCode(t *testing.T) {
	r := registryWith(t, New())

	_, err := r.Execute(context.Background(), "google_save_auth_code", map[string]any{})
	assert.ErrorIs(t, err, tools.ErrInvalidArguments)
}
