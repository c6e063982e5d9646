package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"yap-client/internal/models"
	"yap-client/internal/remote"
)

// LoggedInClient registers username on the fake API and returns a client
// holding its session.
func (f *FakeAPI) LoggedInClient(t testing.TB, username string) (*remote.Client, models.User) {
	t.Helper()
	user := f.AddUser(username, "password123")

	client, err := remote.NewClient(f.APIConfig(), nil)
	require.NoError(t, err)
	_, err = client.Login(context.Background(), models.Credentials{Username: username, Password: "password123"})
	require.NoError(t, err)
	return client, user
}
