package oauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
	"github.com/dropDatabas3/portero/internal/security/password"
	"github.com/dropDatabas3/portero/internal/store/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type asyncRecorder struct {
	mu      sync.Mutex
	usage   []string
	touches []string
}

func (a *asyncRecorder) IncrementUsage(clientID string, _ time.Time) {
	a.mu.Lock()
	a.usage = append(a.usage, clientID)
	a.mu.Unlock()
}

func (a *asyncRecorder) TouchToken(pairID string, _ time.Time) {
	a.mu.Lock()
	a.touches = append(a.touches, pairID)
	a.mu.Unlock()
}

type fixture struct {
	store  *memory.Store
	clock  *clock
	async  *asyncRecorder
	svc    Services
	tenant *repository.Tenant
	client *repository.Client
	secret string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := &clock{now: time.Unix(1_700_000_000, 0).UTC()}
	codec, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "parse-api", "parse-public-api")
	require.NoError(t, err)
	codec = codec.WithClock(clk.Now)

	st := memory.New()
	async := &asyncRecorder{}
	svc := NewServices(Deps{
		Tenants:       st.Tenants(),
		Clients:       st.Clients(),
		Tokens:        st.Tokens(),
		Logs:          st.RequestLogs(),
		Codec:         codec,
		Hasher:        password.Bcrypt{Cost: bcrypt.MinCost},
		Async:         async,
		DefaultScopes: []string{"read:documents", "write:documents", "read:files"},
	})

	ctx := context.Background()
	tenant := &repository.Tenant{ID: "t1", Slug: "acme", Name: "Acme", Active: true, PlanID: "plan_pro"}
	require.NoError(t, st.Tenants().Create(ctx, tenant))

	created, err := svc.Clients.Create(ctx, CreateClientInput{
		TenantID:      tenant.ID,
		Name:          "integration",
		AllowedScopes: []string{"read:documents", "write:documents"},
	})
	require.NoError(t, err)

	return &fixture{
		store:  st,
		clock:  clk,
		async:  async,
		svc:    svc,
		tenant: tenant,
		client: created.Client,
		secret: created.Secret,
	}
}

// ─── Authenticator ───

func TestAuthenticate_Success(t *testing.T) {
	f := newFixture(t)

	c, tn, err := f.svc.Auth.Authenticate(context.Background(), f.client.ClientID, f.secret)
	require.NoError(t, err)
	assert.Equal(t, f.client.ID, c.ID)
	assert.Equal(t, f.tenant.ID, tn.ID)
	assert.Empty(t, c.SecretHash)
	assert.Equal(t, []string{f.client.ID}, f.async.usage)
}

func TestAuthenticate_FailsClosedIdentically(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(f *fixture) (clientID, secret string)
	}{
		{"unknown client", func(f *fixture) (string, string) { return "client_nope", f.secret }},
		{"wrong secret", func(f *fixture) (string, string) { return f.client.ClientID, f.secret + "x" }},
		{"empty secret", func(f *fixture) (string, string) { return f.client.ClientID, "" }},
		{"inactive client", func(f *fixture) (string, string) {
			require.NoError(t, f.store.Clients().SetActive(ctx, f.client.ID, false))
			return f.client.ClientID, f.secret
		}},
		{"inactive tenant", func(f *fixture) (string, string) {
			require.NoError(t, f.store.Tenants().SetActive(ctx, f.tenant.ID, false))
			return f.client.ClientID, f.secret
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id, secret := tt.setup(f)
			_, _, err := f.svc.Auth.Authenticate(ctx, id, secret)
			require.ErrorIs(t, err, ErrInvalidClient)
			assert.Equal(t, ErrInvalidClient.Error(), err.Error())
			assert.Empty(t, f.async.usage)
		})
	}
}

func TestAuthenticate_EveryFailureVerifiesAHash(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setup     func(f *fixture) (clientID, secret string)
		wantDummy bool
	}{
		{"missing client id", func(f *fixture) (string, string) { return "", f.secret }, true},
		{"unknown client", func(f *fixture) (string, string) { return "client_nope", f.secret }, true},
		{"inactive client", func(f *fixture) (string, string) {
			require.NoError(t, f.store.Clients().SetActive(ctx, f.client.ID, false))
			return f.client.ClientID, f.secret
		}, true},
		{"inactive tenant", func(f *fixture) (string, string) {
			require.NoError(t, f.store.Tenants().SetActive(ctx, f.tenant.ID, false))
			return f.client.ClientID, f.secret
		}, true},
		{"wrong secret", func(f *fixture) (string, string) { return f.client.ClientID, f.secret + "x" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var hashes []string
			auth := NewAuthenticator(AuthDeps{
				Tenants:   f.store.Tenants(),
				Clients:   f.store.Clients(),
				DummyHash: "$2a$04$dummy",
				Verify: func(plain, encoded string) bool {
					hashes = append(hashes, encoded)
					return password.Verify(plain, encoded)
				},
			})

			id, secret := tt.setup(f)
			_, _, err := auth.Authenticate(ctx, id, secret)
			require.ErrorIs(t, err, ErrInvalidClient)
			require.Len(t, hashes, 1)
			if tt.wantDummy {
				assert.Equal(t, "$2a$04$dummy", hashes[0])
			} else {
				assert.NotEqual(t, "$2a$04$dummy", hashes[0])
			}
		})
	}
}

func TestNewServices_DummyHashMatchesHasherCost(t *testing.T) {
	f := newFixture(t)

	cost, err := bcrypt.Cost([]byte(f.svc.Auth.deps.DummyHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

type failingClients struct{ repository.ClientRepository }

func (failingClients) GetByClientID(context.Context, string) (*repository.Client, error) {
	return nil, errors.New("connection refused")
}

func TestAuthenticate_BackendErrorNeverAuthenticates(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthenticator(AuthDeps{Tenants: f.store.Tenants(), Clients: failingClients{f.store.Clients()}})

	c, _, err := auth.Authenticate(context.Background(), f.client.ClientID, f.secret)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidClient)
	assert.Nil(t, c)
}

// ─── Issue / Validate ───

func TestIssue_GrantedIsIntersection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Token.Issue(ctx, f.client, ParseScopes("read:documents bogus:scope"))
	require.NoError(t, err)
	assert.Equal(t, "read:documents", resp.Scope)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.EqualValues(t, 3600, resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)

	ac, err := f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:documents"}, ac.Scopes)
	assert.Equal(t, f.client.ID, ac.Client.ID)
	assert.Equal(t, f.tenant.ID, ac.Tenant.ID)
	assert.Equal(t, []string{ac.Pair.ID}, f.async.touches)
}

func TestIssue_EmptyIntersectionFallsBackToAllowed(t *testing.T) {
	f := newFixture(t)

	for _, requested := range [][]string{nil, {"bogus:scope"}} {
		resp, err := f.svc.Token.Issue(context.Background(), f.client, requested)
		require.NoError(t, err)
		assert.Equal(t, "read:documents write:documents", resp.Scope)
	}
}

func TestIssue_PersistsHashesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	ac, err := f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	assert.NotEqual(t, resp.AccessToken, ac.Pair.AccessTokenHash)
	assert.NotEqual(t, resp.RefreshToken, ac.Pair.RefreshTokenHash)
	assert.Equal(t, f.clock.Now().Add(time.Hour), ac.Pair.AccessExpiresAt)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), ac.Pair.RefreshExpiresAt)
}

func TestValidate_ErrorModes(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Validator.Validate(ctx, "not-a-jwt", jwtx.KindAccess)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("wrong kind", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.Token.Issue(ctx, f.client, nil)
		require.NoError(t, err)
		_, err = f.svc.Validator.Validate(ctx, resp.RefreshToken, jwtx.KindAccess)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.Token.Issue(ctx, f.client, nil)
		require.NoError(t, err)
		f.clock.Advance(time.Hour + time.Second)
		_, err = f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("unknown to store", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.Token.Issue(ctx, f.client, nil)
		require.NoError(t, err)
		_, err = f.store.Tokens().DeleteExpired(ctx, f.clock.Now().Add(365*24*time.Hour))
		require.NoError(t, err)
		_, err = f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("revoked", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.Token.Issue(ctx, f.client, nil)
		require.NoError(t, err)
		ok, err := f.svc.Token.Revoke(ctx, resp.AccessToken, "")
		require.NoError(t, err)
		require.True(t, ok)
		_, err = f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
		require.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("client inactive", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.Token.Issue(ctx, f.client, nil)
		require.NoError(t, err)
		require.NoError(t, f.svc.Clients.SetActive(ctx, f.client.ClientID, false))
		_, err = f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
		require.ErrorIs(t, err, ErrClientInactive)
	})

	t.Run("tenant inactive", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.Token.Issue(ctx, f.client, nil)
		require.NoError(t, err)
		require.NoError(t, f.store.Tenants().SetActive(ctx, f.tenant.ID, false))
		_, err = f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
		require.ErrorIs(t, err, ErrClientInactive)
	})
}

type shortExpiryTokens struct{ repository.TokenRepository }

func (s shortExpiryTokens) GetByAccessHash(ctx context.Context, hash string) (*repository.TokenPair, error) {
	p, err := s.TokenRepository.GetByAccessHash(ctx, hash)
	if err == nil {
		p.AccessExpiresAt = p.IssuedAt.Add(time.Minute)
	}
	return p, err
}

func TestValidate_StoredExpiryWinsOverClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	v := NewValidator(ValidatorDeps{
		Tenants: f.store.Tenants(),
		Clients: f.store.Clients(),
		Tokens:  shortExpiryTokens{f.store.Tokens()},
		Codec:   f.svc.Validator.deps.Codec,
	})
	f.clock.Advance(2 * time.Minute)

	_, err = v.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

// ─── Refresh ───

func TestRefresh_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Token.Issue(ctx, f.client, []string{"write:documents"})
	require.NoError(t, err)

	second, err := f.svc.Token.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "write:documents", second.Scope)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	ac, err := f.svc.Validator.Validate(ctx, second.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, []string{"write:documents"}, ac.Scopes)

	_, err = f.svc.Validator.Validate(ctx, first.AccessToken, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = f.svc.Token.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidGrant)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefresh_PreservesGrantAfterClientEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Token.Issue(ctx, f.client, []string{"write:documents"})
	require.NoError(t, err)

	_, err = f.svc.Clients.Update(ctx, f.client.ClientID, UpdateClientInput{AllowedScopes: []string{"read:documents"}})
	require.NoError(t, err)

	second, err := f.svc.Token.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "write:documents", second.Scope)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	_, err = f.svc.Token.Refresh(ctx, resp.AccessToken)
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = f.svc.Token.Refresh(ctx, "")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

// ─── Revoke ───

func TestRevoke_TwiceReportsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	ok, err := f.svc.Token.Revoke(ctx, resp.RefreshToken, "access_token")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.Token.Revoke(ctx, resp.RefreshToken, "refresh_token")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.Token.Revoke(ctx, "never-issued", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeForClient_IgnoresForeignTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	ok, err := f.svc.Token.RevokeForClient(ctx, "someone-else", resp.AccessToken, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.Token.RevokeForClient(ctx, f.client.ID, resp.AccessToken, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

// ─── Client admin ───

func TestRegenerateSecret_RevokesAllPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)
	b, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	out, n, err := f.svc.Clients.RegenerateSecret(ctx, f.client.ClientID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NotEqual(t, f.secret, out.Secret)

	for _, raw := range []string{a.AccessToken, b.AccessToken} {
		_, err := f.svc.Validator.Validate(ctx, raw, jwtx.KindAccess)
		require.ErrorIs(t, err, ErrTokenRevoked)
	}

	_, _, err = f.svc.Auth.Authenticate(ctx, f.client.ClientID, f.secret)
	require.ErrorIs(t, err, ErrInvalidClient)
	_, _, err = f.svc.Auth.Authenticate(ctx, f.client.ClientID, out.Secret)
	require.NoError(t, err)
}

// flakyRevoker falla en la llamada número failOn (1-based); 0 falla siempre.
type flakyRevoker struct {
	inner  Revoker
	failOn int
	calls  int
}

func (r *flakyRevoker) RevokeAllForClient(ctx context.Context, clientID string) (int64, error) {
	r.calls++
	if r.failOn == 0 || r.calls == r.failOn {
		return 0, errors.New("db down")
	}
	return r.inner.RevokeAllForClient(ctx, clientID)
}

func (f *fixture) adminWith(r Revoker) *ClientAdmin {
	return NewClientAdmin(ClientAdminDeps{
		Tenants: f.store.Tenants(),
		Clients: f.store.Clients(),
		Hasher:  password.Bcrypt{Cost: bcrypt.MinCost},
		Revoker: r,
	})
}

func TestRegenerateSecret_RevokeFailureLeavesClientUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	live, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	out, n, err := f.adminWith(&flakyRevoker{inner: f.svc.Token}).RegenerateSecret(ctx, f.client.ClientID)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Zero(t, n)

	_, _, err = f.svc.Auth.Authenticate(ctx, f.client.ClientID, f.secret)
	require.NoError(t, err)
	_, err = f.svc.Validator.Validate(ctx, live.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
}

func TestRegenerateSecret_LateSweepFailureStillReturnsSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	live, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	out, n, err := f.adminWith(&flakyRevoker{inner: f.svc.Token, failOn: 2}).RegenerateSecret(ctx, f.client.ClientID)
	require.Error(t, err)
	require.NotNil(t, out)
	assert.EqualValues(t, 1, n)

	_, _, err = f.svc.Auth.Authenticate(ctx, f.client.ClientID, out.Secret)
	require.NoError(t, err)
	_, _, err = f.svc.Auth.Authenticate(ctx, f.client.ClientID, f.secret)
	require.ErrorIs(t, err, ErrInvalidClient)
	_, err = f.svc.Validator.Validate(ctx, live.AccessToken, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestClientAdmin_CreateDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Clients.Create(ctx, CreateClientInput{TenantID: f.tenant.ID, Name: "defaults"})
	require.NoError(t, err)
	assert.Equal(t, []string{"read:documents", "write:documents", "read:files"}, out.Client.AllowedScopes)
	assert.Regexp(t, `^client_[0-9a-f]{32}$`, out.Client.ClientID)
	assert.Regexp(t, `^secret_[0-9a-f]{64}$`, out.Secret)
	assert.True(t, out.Client.Active)

	_, err = f.svc.Clients.Create(ctx, CreateClientInput{TenantID: "missing", Name: "x"})
	require.ErrorIs(t, err, ErrTenantNotFound)

	_, err = f.svc.Clients.Create(ctx, CreateClientInput{TenantID: f.tenant.ID})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Clients.Create(ctx, CreateClientInput{
		TenantID: f.tenant.ID, Name: "bad", RateOverride: &repository.RateLimits{PerMinute: 1},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Clients.Create(ctx, CreateClientInput{
		TenantID: f.tenant.ID, Name: "bad scopes", AllowedScopes: []string{"read:documents", "Read Docs"},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Clients.Update(ctx, f.client.ClientID, UpdateClientInput{AllowedScopes: []string{";drop"}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestClientAdmin_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Token.Issue(ctx, f.client, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Clients.Delete(ctx, f.client.ClientID))

	_, err = f.svc.Validator.Validate(ctx, resp.AccessToken, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.ErrorIs(t, f.svc.Clients.Delete(ctx, f.client.ClientID), ErrClientNotFound)
}

func TestClientAdmin_ListHidesHashes(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.Clients.List(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].SecretHash)
}
