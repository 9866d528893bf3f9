package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/httpclient"
)

// fakeGraph serves the token endpoint and the users endpoints.
type fakeGraph struct {
	t          *testing.T
	tokenCalls int
	users      map[string][]graphUser // keyed by $filter
	filters    []string
	patched    map[string]changePasswordRequest
	patchErr   bool
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/tenant-1/oauth2/token":
		require.NoError(f.t, r.ParseForm())
		require.Equal(f.t, "client_credentials", r.PostForm.Get("grant_type"))
		require.Equal(f.t, "app-1", r.PostForm.Get("client_id"))
		require.Equal(f.t, "s3cret", r.PostForm.Get("client_secret"))
		require.Equal(f.t, "https://graph.windows.net", r.PostForm.Get("resource"))
		f.tokenCalls++
		_, _ = io.WriteString(w, `{"token_type":"Bearer","expires_in":"3599","access_token":"app-token"}`)
	case r.URL.Path == "/tenant-1/users" && r.Method == http.MethodGet:
		require.Equal(f.t, "Bearer app-token", r.Header.Get("Authorization"))
		require.Equal(f.t, "1.6", r.URL.Query().Get("api-version"))
		filter := r.URL.Query().Get("$filter")
		f.filters = append(f.filters, filter)
		_ = json.NewEncoder(w).Encode(usersResponse{Value: f.users[filter]})
	case r.Method == http.MethodPatch:
		require.Equal(f.t, "Bearer app-token", r.Header.Get("Authorization"))
		if f.patchErr {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"odata.error":{"code":"Authorization_RequestDenied"}}`)
			return
		}
		var in changePasswordRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&in))
		f.patched[r.URL.Path] = in
		w.WriteHeader(http.StatusNoContent)
	default:
		f.t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	}
}

func newFakeDirectory(t *testing.T) (*Client, *fakeGraph) {
	t.Helper()
	fg := &fakeGraph{t: t, users: map[string][]graphUser{}, patched: map[string]changePasswordRequest{}}
	srv := httptest.NewServer(fg)
	t.Cleanup(srv.Close)
	c, err := NewClient(httpclient.New(srv.Client()), Config{
		TenantID: "tenant-1",
		ClientID: "app-1",
		LoginURL: srv.URL,
		GraphURL: srv.URL,
	}, func(context.Context) (string, error) { return "s3cret", nil })
	require.NoError(t, err)
	return c, fg
}

func TestNewClient_Validation(t *testing.T) {
	secret := func(context.Context) (string, error) { return "", nil }
	_, err := NewClient(nil, Config{TenantID: "t", ClientID: "c"}, secret)
	require.Error(t, err)
	_, err = NewClient(httpclient.New(nil), Config{TenantID: "t", ClientID: "c"}, nil)
	require.Error(t, err)
	_, err = NewClient(httpclient.New(nil), Config{ClientID: "c"}, secret)
	require.Error(t, err)
}

func TestGetUserByID_PrincipalName(t *testing.T) {
	c, fg := newFakeDirectory(t)
	fg.users["userPrincipalName eq 'ana@contoso.com'"] = []graphUser{{
		ObjectID:          "obj-1",
		DisplayName:       "Ana Souza",
		Mail:              "ana@contoso.com",
		Mobile:            "+5511999990000",
		UserPrincipalName: "ana@contoso.com",
	}}

	user, err := c.GetUserByID(context.Background(), "ana@contoso.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, "ana@contoso.com", user.UserID)
	require.Equal(t, "obj-1", user.ObjectID)
	require.Equal(t, "+5511999990000", user.MobilePhone)
	require.Len(t, fg.filters, 1)
}

func TestGetUserByID_FallsBackToMail(t *testing.T) {
	c, fg := newFakeDirectory(t)
	fg.users["mail eq 'ana.souza@contoso.com'"] = []graphUser{{ObjectID: "obj-2"}}

	user, err := c.GetUserByID(context.Background(), "ana.souza@contoso.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, "obj-2", user.ObjectID)
	require.Equal(t, []string{
		"userPrincipalName eq 'ana.souza@contoso.com'",
		"mail eq 'ana.souza@contoso.com'",
	}, fg.filters)
	require.Equal(t, 1, fg.tokenCalls, "application token is reused")
}

func TestGetUserByID_NotFound(t *testing.T) {
	c, _ := newFakeDirectory(t)

	user, err := c.GetUserByID(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestGetUserByID_EscapesQuotes(t *testing.T) {
	c, fg := newFakeDirectory(t)

	_, err := c.GetUserByID(context.Background(), "o'neil")
	require.NoError(t, err)
	require.Equal(t, "userPrincipalName eq 'o''neil'", fg.filters[0])
}

func TestGetUserByID_SecretError(t *testing.T) {
	c, err := NewClient(httpclient.New(nil), Config{TenantID: "t", ClientID: "c"}, func(context.Context) (string, error) {
		return "", errors.New("ssm down")
	})
	require.NoError(t, err)

	_, err = c.GetUserByID(context.Background(), "ana")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm down")
}

func TestChangePassword(t *testing.T) {
	c, fg := newFakeDirectory(t)

	err := c.ChangePassword(context.Background(), domain.UserProfile{ObjectID: "obj-1"}, "Ab3dE9x12")
	require.NoError(t, err)

	got, ok := fg.patched["/tenant-1/users/obj-1"]
	require.True(t, ok)
	require.Equal(t, "Ab3dE9x12", got.PasswordProfile.Password)
	require.True(t, got.PasswordProfile.ForceChangePasswordNextLogin)
}

func TestChangePassword_Errors(t *testing.T) {
	c, fg := newFakeDirectory(t)

	err := c.ChangePassword(context.Background(), domain.UserProfile{}, "x")
	require.Error(t, err)

	fg.patchErr = true
	err = c.ChangePassword(context.Background(), domain.UserProfile{ObjectID: "obj-1"}, "x")
	require.Error(t, err)
	status, ok := httpclient.StatusCode(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, status)
}
