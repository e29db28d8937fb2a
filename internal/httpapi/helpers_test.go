package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/audit"
	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/cache"
	"recruitcore.io/internal/directory"
	"recruitcore.io/internal/store/memory"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "admin-password-1"
)

type apiClient struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	store   *memory.Store
	kv      *cache.MemoryStore
	rbac    *auth.RBACService
}

type testOption func(*[]Option)

func withAPIOptions(opts ...Option) testOption {
	return func(dst *[]Option) { *dst = append(*dst, opts...) }
}

func newTestAPI(t *testing.T, topts ...testOption) *apiClient {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	kv := cache.NewMemoryStore()
	c := cache.New(kv)

	_, err := auth.Seed(ctx, store, auth.SeedOptions{AdminEmail: testAdminEmail, AdminPassword: testAdminPassword})
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("http-test-secret", "HS256", auth.WithSharedBlacklist(cache.NewBlacklist(c)))
	require.NoError(t, err)
	resolver := auth.NewResolver(store, c)
	sessions, err := auth.NewService(store, tokens, resolver)
	require.NoError(t, err)
	rbac, err := auth.NewRBACService(store, resolver)
	require.NoError(t, err)
	dir, err := directory.NewService(store, c)
	require.NoError(t, err)

	opts := []Option{WithRateLimit(1000, 1000)}
	for _, o := range topts {
		o(&opts)
	}
	api := New(ReadyProbe{Store: store, Cache: c}, "test", Services{
		Auth:      sessions,
		RBAC:      rbac,
		Gate:      auth.NewGate(tokens, resolver),
		Directory: dir,
		Audit:     audit.NewRecorder(),
	}, opts...)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &apiClient{t: t, baseURL: srv.URL, client: srv.Client(), store: store, kv: kv, rbac: rbac}
}

func (c *apiClient) do(method, path, token string, body any) *http.Response {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// expect asserts the status and decodes the body into out when out is non-nil.
func (c *apiClient) expect(resp *http.Response, code int, out any) {
	c.t.Helper()
	if resp.StatusCode != code {
		raw, _ := io.ReadAll(resp.Body)
		c.t.Fatalf("expected %d, got %d: %s", code, resp.StatusCode, raw)
	}
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func (c *apiClient) login(email, password string) loginResponse {
	c.t.Helper()
	var out loginResponse
	c.expect(c.do(http.MethodPost, "/v1/auth/login", "", loginRequest{Email: email, Password: password}), http.StatusOK, &out)
	return out
}

func (c *apiClient) adminToken() string {
	c.t.Helper()
	return c.login(testAdminEmail, testAdminPassword).AccessToken
}

// registerActive registers a user, activates it as the admin and returns it.
func (c *apiClient) registerActive(email, password string) auth.User {
	c.t.Helper()
	var user auth.User
	c.expect(c.do(http.MethodPost, "/v1/auth/register", "", auth.RegisterInput{Email: email, Password: password}), http.StatusCreated, &user)
	c.expect(c.do(http.MethodPost, "/v1/users/"+user.ID+"/activate", c.adminToken(), nil), http.StatusOK, &user)
	return user
}

func (c *apiClient) actorByName(name string) *auth.Actor {
	c.t.Helper()
	a, err := c.store.Actors(context.Background()).FindByName(context.Background(), name)
	require.NoError(c.t, err)
	return a
}

func (c *apiClient) permissionByName(name string) *auth.Permission {
	c.t.Helper()
	p, err := c.store.Permissions(context.Background()).FindByName(context.Background(), name)
	require.NoError(c.t, err)
	return p
}
