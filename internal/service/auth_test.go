package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-ui-web/internal/adapters/memory"
	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/mocks"
	fakes "github.com/target/mmk-ui-web/internal/mocks/auth"
	"github.com/target/mmk-ui-web/internal/ports"
	"github.com/target/mmk-ui-web/internal/testutil"
)

type countSink struct {
	mu     sync.Mutex
	counts []map[string]string
}

func (s *countSink) Count(name string, _ int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "auth.resolve" {
		s.counts = append(s.counts, tags)
	}
}

func (s *countSink) Timing(string, time.Duration, map[string]string) {}

func (s *countSink) last() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.counts) == 0 {
		return nil
	}
	return s.counts[len(s.counts)-1]
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestState_EmptyToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	sink := &countSink{}

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver, Metrics: sink})
	st, err := svc.State(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)
	assert.Equal(t, "none", sink.last()["source"])
}

func TestState_ExpiredJWTSkipsBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	now := testutil.TestTime()
	sink := &countSink{}

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver, Metrics: sink, Now: testutil.FixedTimeFunc(now)})
	st, err := svc.State(context.Background(), signedToken(t, now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)
	assert.Equal(t, "expired", sink.last()["source"])
}

func TestState_NoResolverTrustsToken(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	st, err := svc.State(context.Background(), "opaque")
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "opaque", st.Token)
	assert.Nil(t, st.Identity)
}

func TestState_ResolvesAndCaches(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	clock := testutil.NewClock(testutil.TestTime())
	cache := memory.NewIdentityCache(memory.Config{Capacity: 10, Now: clock.Now})
	sink := &countSink{}

	exp := clock.Now().Add(time.Hour)
	token := signedToken(t, exp)
	resolver.EXPECT().
		Resolve(gomock.Any(), token).
		Return(domainauth.Identity{UserID: "user-1", Email: "ada@example.com"}, nil).
		Times(1)

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver, Cache: cache, Metrics: sink, Now: clock.Now})

	st, err := svc.State(context.Background(), token)
	require.NoError(t, err)
	require.True(t, st.LoggedIn)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "ada@example.com", st.Identity.Email)
	assert.True(t, st.Identity.ExpiresAt.Equal(exp), "token expiry should be copied onto the identity")
	assert.Equal(t, "backend", sink.last()["source"])

	st, err = svc.State(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "cache", sink.last()["source"])
}

func TestState_CacheEntryExpiresWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	clock := testutil.NewClock(testutil.TestTime())
	cache := memory.NewIdentityCache(memory.Config{Capacity: 10, Now: clock.Now})

	resolver.EXPECT().Resolve(gomock.Any(), "opaque").Return(domainauth.Identity{UserID: "u"}, nil).Times(2)

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver, Cache: cache, CacheTTL: time.Minute, Now: clock.Now})
	_, err := svc.State(context.Background(), "opaque")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = svc.State(context.Background(), "opaque")
	require.NoError(t, err)
}

func TestState_UnauthorizedIsAnonymous(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "revoked").Return(domainauth.Identity{}, apperrors.Unauthorized("expired"))

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver})
	st, err := svc.State(context.Background(), "revoked")
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)
	assert.Empty(t, st.Token)
}

func TestState_NotFoundTrustsToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "tok").Return(domainauth.Identity{}, apperrors.NotFound("no user endpoint configured"))

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver})
	st, err := svc.State(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
	assert.Nil(t, st.Identity)
}

func TestState_BackendFailureKeepsToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	boom := apperrors.Wrap(errors.New("connection refused"), apperrors.ErrCodeUpstream, "fetch user")
	resolver.EXPECT().Resolve(gomock.Any(), "tok").Return(domainauth.Identity{}, boom)
	sink := &countSink{}

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver, Metrics: sink})
	st, err := svc.State(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "tok", st.Token)
	assert.Equal(t, "upstream", sink.last()["error_class"])
}

func TestState_CacheErrorsFallBackToResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	cache := mocks.NewMockIdentityCache(ctrl)

	cache.EXPECT().Get(gomock.Any(), cacheKey("tok")).Return(domainauth.Identity{}, false, errors.New("redis down"))
	resolver.EXPECT().Resolve(gomock.Any(), "tok").Return(domainauth.Identity{UserID: "u"}, nil)
	cache.EXPECT().Set(gomock.Any(), cacheKey("tok"), gomock.Any(), DefaultIdentityTTL).Return(errors.New("redis down"))

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver, Cache: cache})
	st, err := svc.State(context.Background(), "tok")
	require.NoError(t, err)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "u", st.Identity.UserID)
}

func TestState_ConcurrentLookupsShareOneResolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)

	var calls atomic.Int32
	release := make(chan struct{})
	resolver.EXPECT().Resolve(gomock.Any(), "tok").DoAndReturn(func(context.Context, string) (domainauth.Identity, error) {
		calls.Add(1)
		<-release
		return domainauth.Identity{UserID: "u"}, nil
	}).MinTimes(1)

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver})

	const n = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			st, err := svc.State(context.Background(), "tok")
			assert.NoError(t, err)
			assert.True(t, st.LoggedIn)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Less(t, int(calls.Load()), n)
}

func TestState_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	resolver.EXPECT().Resolve(gomock.Any(), "tok").DoAndReturn(func(ctx context.Context, _ string) (domainauth.Identity, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-ctx.Done():
			return domainauth.Identity{}, ctx.Err()
		case <-release:
		}
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return domainauth.Identity{UserID: "u"}, nil
	}).MinTimes(1)

	svc := NewAuthService(AuthServiceOptions{Resolver: resolver})

	first, cancel := context.WithCancel(context.Background())
	type result struct {
		st  domainauth.State
		err error
	}
	firstDone := make(chan result, 1)
	go func() {
		st, err := svc.State(first, "tok")
		firstDone <- result{st, err}
	}()
	<-entered
	cancel()

	secondDone := make(chan result, 1)
	go func() {
		st, err := svc.State(context.Background(), "tok")
		secondDone <- result{st, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for _, done := range []chan result{firstDone, secondDone} {
		r := <-done
		require.NoError(t, r.err)
		assert.True(t, r.st.LoggedIn)
		require.NotNil(t, r.st.Identity)
		assert.Equal(t, "u", r.st.Identity.UserID)
	}
}

func TestLogin_CachesReturnedIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := mocks.NewMockAuthenticator(ctrl)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	cache := memory.NewIdentityCache(memory.Config{Capacity: 10})

	id := &domainauth.Identity{UserID: "u", Email: "a@b.c"}
	creds := domainauth.Credentials{Email: "a@b.c", Password: "pw"}
	authn.EXPECT().Login(gomock.Any(), creds).Return(ports.LoginResult{Token: "tok", Identity: id}, nil)

	svc := NewAuthService(AuthServiceOptions{Authenticator: authn, Resolver: resolver, Cache: cache})
	res, err := svc.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)

	// Served from cache; the resolver expects no calls.
	st, err := svc.State(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", st.Identity.Email)
}

func TestLogin_PropagatesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := mocks.NewMockAuthenticator(ctrl)
	authn.EXPECT().Login(gomock.Any(), gomock.Any()).Return(ports.LoginResult{}, apperrors.Unauthorized("Invalid credentials"))

	svc := NewAuthService(AuthServiceOptions{Authenticator: authn})
	_, err := svc.Login(context.Background(), domainauth.Credentials{Email: "a", Password: "b"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestSignupAndReset(t *testing.T) {
	backend := fakes.NewStaticBackend()
	svc := NewAuthService(AuthServiceOptions{Authenticator: backend, Resolver: backend})

	res, err := svc.Signup(context.Background(), domainauth.Registration{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	st, err := svc.State(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ada", st.Identity.Name)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ada@example.com"))
	err = svc.RequestPasswordReset(context.Background(), "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestLogout_DropsCacheEvenOnBackendError(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := mocks.NewMockAuthenticator(ctrl)
	cache := mocks.NewMockIdentityCache(ctrl)

	gomock.InOrder(
		cache.EXPECT().Delete(gomock.Any(), cacheKey("tok")).Return(nil),
		authn.EXPECT().Logout(gomock.Any(), "tok").Return(errors.New("backend down")),
	)

	svc := NewAuthService(AuthServiceOptions{Authenticator: authn, Cache: cache})
	require.Error(t, svc.Logout(context.Background(), "tok"))
	require.NoError(t, svc.Logout(context.Background(), ""))
}

func TestBeginOAuth(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	assert.False(t, svc.SupportsOAuth())
	_, err := svc.BeginOAuth(context.Background(), "http://localhost/auth/callback")
	assert.True(t, apperrors.IsNotFound(err))

	ctrl := gomock.NewController(t)
	provider := mocks.NewMockAuthProvider(ctrl)
	provider.EXPECT().
		Begin(gomock.Any(), ports.BeginInput{RedirectURL: "http://localhost/auth/callback"}).
		Return("https://idp/auth", "st", "nc", nil)

	svc = NewAuthService(AuthServiceOptions{Provider: provider})
	assert.True(t, svc.SupportsOAuth())

	_, err = svc.BeginOAuth(context.Background(), "")
	assert.True(t, apperrors.IsValidation(err))

	res, err := svc.BeginOAuth(context.Background(), "http://localhost/auth/callback")
	require.NoError(t, err)
	assert.Equal(t, &BeginLoginResult{AuthURL: "https://idp/auth", State: "st", Nonce: "nc"}, res)
}

func TestCompleteOAuth(t *testing.T) {
	provider := fakes.NewMockAuthProvider()
	cache := memory.NewIdentityCache(memory.Config{Capacity: 10})
	svc := NewAuthService(AuthServiceOptions{Provider: provider, Cache: cache, Resolver: fakes.NewStaticBackend()})

	tests := []struct {
		name  string
		input CompleteLoginInput
	}{
		{name: "missing code", input: CompleteLoginInput{State: "s", Nonce: "n"}},
		{name: "missing state", input: CompleteLoginInput{Code: "c", Nonce: "n"}},
		{name: "missing nonce", input: CompleteLoginInput{Code: "c", State: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CompleteOAuth(context.Background(), tt.input)
			assert.True(t, apperrors.IsValidation(err))
		})
	}

	res, err := svc.CompleteOAuth(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, "mock-token", res.Token)

	// Identity from the exchange is cached, so the static resolver (which does not know the token) is not consulted.
	st, err := svc.State(context.Background(), "mock-token")
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", st.Identity.UserID)

	provider.Token = ""
	provider.ExchangeFunc = func(context.Context, ports.ExchangeInput) (ports.LoginResult, error) {
		return ports.LoginResult{}, nil
	}
	_, err = svc.CompleteOAuth(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	assert.True(t, apperrors.IsUpstream(err))
}

func TestPasswordFlowsWithoutAuthenticator(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{Provider: fakes.NewMockAuthProvider()})
	assert.False(t, svc.SupportsPasswordLogin())

	_, err := svc.Login(context.Background(), domainauth.Credentials{Email: "a", Password: "b"})
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Signup(context.Background(), domainauth.Registration{Email: "a", Password: "b"})
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(svc.RequestPasswordReset(context.Background(), "a")))
	assert.NoError(t, svc.Logout(context.Background(), "tok"))
}
