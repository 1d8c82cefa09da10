package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/identity"
	"github.com/AdriBarda/url-shortener/internal/repository"
)

func testAuthService(store SessionStore, provider IdentityProvider, nowUnix int64) (*AuthService, *RefreshCoordinator) {
	cipher := &plainCipher{}
	coordinator := testCoordinator(store, cipher, provider, nowUnix)
	svc := NewAuthService(store, cipher, provider, coordinator, testPolicy(), "https://short.example.com", slog.Default())
	svc.now = func() time.Time { return time.Unix(nowUnix, 0) }
	return svc, coordinator
}

func TestHandleCallbackIssuesSession(t *testing.T) {
	store := newStubSessionStore()
	provider := &stubProvider{exchangeFn: func(code string) (*identity.Grant, error) {
		if code != "auth-code" {
			t.Fatalf("unexpected code %q", code)
		}
		return &identity.Grant{
			UserID:       "user-1",
			Email:        "u@example.com",
			AvatarURL:    "https://img.example.com/a.png",
			RefreshToken: "provider-refresh",
			ExpiresAt:    3600,
		}, nil
	}}
	svc, _ := testAuthService(store, provider, 100)

	sid, err := svc.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if sid == "" {
		t.Fatal("expected a session identifier")
	}

	rec := store.record(sid)
	if rec == nil {
		t.Fatal("expected record in store")
	}
	if rec.RefreshToken != "enc:provider-refresh" {
		t.Fatalf("credential must be stored encrypted, got %q", rec.RefreshToken)
	}
	if rec.CreatedAt != 100 || rec.LastSeenAt != 100 || rec.LastRefreshAt != 100 {
		t.Fatalf("expected issuance timestamps at 100, got %+v", rec)
	}
	if rec.UserID != "user-1" || rec.ExpiresAt != 3600 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestHandleCallbackProviderFailure(t *testing.T) {
	store := newStubSessionStore()
	provider := &stubProvider{exchangeFn: func(string) (*identity.Grant, error) {
		return nil, identity.ErrProvider
	}}
	svc, _ := testAuthService(store, provider, 100)

	if _, err := svc.HandleCallback(context.Background(), "bad"); !errors.Is(err, identity.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if store.puts != 0 {
		t.Fatal("no session may be written on a failed exchange")
	}
}

func TestAuthenticateMissingOrUnknownSid(t *testing.T) {
	store := newStubSessionStore()
	svc, _ := testAuthService(store, &stubProvider{}, 100)

	if _, err := svc.Authenticate(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty sid: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "unknown"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown sid: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticateHardCapDeletesRecord(t *testing.T) {
	store := newStubSessionStore()
	created := int64(0)
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", RefreshToken: "enc:r", ExpiresAt: 1_000_000_000, CreatedAt: created,
	})

	capSeconds := int64(testPolicy().HardCapAge.Seconds())
	svc, _ := testAuthService(store, &stubProvider{}, created+capSeconds+1)

	if _, err := svc.Authenticate(context.Background(), "sid-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if store.has("sid-1") {
		t.Fatal("hard-capped record must be deleted from the store")
	}
}

// Scenario A: issued at t=0 with expiresAt=3600; at t=3900 (past expiry and
// past the 60s grace) the guard must reject.
func TestAuthenticatePastGraceRejects(t *testing.T) {
	store := newStubSessionStore()
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", RefreshToken: "enc:r", ExpiresAt: 3600, CreatedAt: 0, LastRefreshAt: 0,
	})
	provider := &stubProvider{refreshFn: func(string) (*identity.Grant, error) {
		return successfulGrant(), nil
	}}
	svc, coordinator := testAuthService(store, provider, 3900)

	if _, err := svc.Authenticate(context.Background(), "sid-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized past grace, got %v", err)
	}
	// Past grace but inside the refresh window: a refresh still launches for
	// the benefit of later requests.
	coordinator.Wait()
}

// Scenario B: inside the refresh window with the cooldown elapsed, the request
// is accepted and exactly one background refresh is triggered.
func TestAuthenticateTriggersSingleBackgroundRefresh(t *testing.T) {
	store := newStubSessionStore()
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", Email: "u@example.com", RefreshToken: "enc:r",
		ExpiresAt: 3600, CreatedAt: 0, LastRefreshAt: 0,
	})
	provider := &stubProvider{refreshFn: func(string) (*identity.Grant, error) {
		return successfulGrant(), nil
	}}
	svc, coordinator := testAuthService(store, provider, 3350)

	id, err := svc.Authenticate(context.Background(), "sid-1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != "user-1" || id.Email != "u@example.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
	coordinator.Wait()

	if got := provider.refreshCount(); got != 1 {
		t.Fatalf("expected exactly one refresh exchange, got %d", got)
	}
	// The current request served the pre-refresh identity; the store now holds
	// the refreshed record for subsequent requests.
	rec := store.record("sid-1")
	if rec == nil || rec.ExpiresAt != 9000 {
		t.Fatalf("expected refreshed record, got %+v", rec)
	}
}

// Scenario C at the guard level: concurrent authentications trigger at most
// one refresh exchange.
func TestAuthenticateConcurrentRequestsSingleRefresh(t *testing.T) {
	store := newStubSessionStore()
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", RefreshToken: "enc:r", ExpiresAt: 3600, CreatedAt: 0, LastRefreshAt: 0,
	})
	provider := &stubProvider{refreshFn: func(string) (*identity.Grant, error) {
		return successfulGrant(), nil
	}}
	svc, coordinator := testAuthService(store, provider, 3350)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := svc.Authenticate(context.Background(), "sid-1")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
	}
	coordinator.Wait()

	if got := provider.refreshCount(); got != 1 {
		t.Fatalf("expected one refresh exchange across 8 concurrent requests, got %d", got)
	}
}

// Scenario D: the provider reports the credential revoked; the next request
// must be unauthorized.
func TestAuthenticateAfterRevokedRefresh(t *testing.T) {
	store := newStubSessionStore()
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", RefreshToken: "enc:r", ExpiresAt: 3600, CreatedAt: 0, LastRefreshAt: 0,
	})
	provider := &stubProvider{refreshFn: func(string) (*identity.Grant, error) {
		return nil, errors.New("invalid_grant")
	}}
	svc, coordinator := testAuthService(store, provider, 3350)

	if _, err := svc.Authenticate(context.Background(), "sid-1"); err != nil {
		t.Fatalf("first request should still pass: %v", err)
	}
	coordinator.Wait()

	if _, err := svc.Authenticate(context.Background(), "sid-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revocation, got %v", err)
	}
}

func TestAuthenticateWithinGraceStillAccepts(t *testing.T) {
	store := newStubSessionStore()
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", RefreshToken: "enc:r", ExpiresAt: 3600, CreatedAt: 0, LastRefreshAt: 3340,
	})
	svc, _ := testAuthService(store, &stubProvider{}, 3630)

	id, err := svc.Authenticate(context.Background(), "sid-1")
	if err != nil {
		t.Fatalf("expected acceptance 30s past expiry, got %v", err)
	}
	if id.UserID != "user-1" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestAuthenticateStoreDownIsNotUnauthorized(t *testing.T) {
	store := newStubSessionStore()
	store.getErr = repository.ErrStoreUnavailable
	svc, _ := testAuthService(store, &stubProvider{}, 100)

	_, err := svc.Authenticate(context.Background(), "sid-1")
	if !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("a store outage must never read as unauthorized")
	}
}

// Scenario E: logout deletes the record; the upstream revoke is best effort.
func TestLogoutDeletesSessionAndRevokesUpstream(t *testing.T) {
	store := newStubSessionStore()
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", RefreshToken: "enc:current", ExpiresAt: 3600, CreatedAt: 0,
	})
	provider := &stubProvider{refreshFn: func(token string) (*identity.Grant, error) {
		if token != "current" {
			t.Fatalf("unexpected token %q", token)
		}
		return successfulGrant(), nil
	}}
	svc, _ := testAuthService(store, provider, 100)

	if err := svc.Logout(context.Background(), "sid-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if store.has("sid-1") {
		t.Fatal("record must be gone after logout")
	}
	if provider.revokeCount() != 1 {
		t.Fatalf("expected one upstream revoke, got %d", provider.revokeCount())
	}
}

func TestLogoutSwallowsUpstreamFailures(t *testing.T) {
	store := newStubSessionStore()
	seedSession(store, "sid-1", &domain.SessionRecord{
		UserID: "user-1", RefreshToken: "enc:current", ExpiresAt: 3600, CreatedAt: 0,
	})
	provider := &stubProvider{
		refreshFn: func(string) (*identity.Grant, error) { return nil, errors.New("provider down") },
	}
	svc, _ := testAuthService(store, provider, 100)

	if err := svc.Logout(context.Background(), "sid-1"); err != nil {
		t.Fatalf("upstream failure must be swallowed, got %v", err)
	}
	if store.has("sid-1") {
		t.Fatal("local record must be gone regardless of upstream outcome")
	}
}

func TestLogoutWithoutSessionIsIdempotent(t *testing.T) {
	store := newStubSessionStore()
	svc, _ := testAuthService(store, &stubProvider{}, 100)
	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("Logout without sid: %v", err)
	}
	if err := svc.Logout(context.Background(), "never-existed"); err != nil {
		t.Fatalf("Logout of unknown sid: %v", err)
	}
}

func TestLogoutStoreDownPropagates(t *testing.T) {
	store := newStubSessionStore()
	store.getErr = repository.ErrStoreUnavailable
	svc, _ := testAuthService(store, &stubProvider{}, 100)

	if err := svc.Logout(context.Background(), "sid-1"); !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"/dashboard":       "/dashboard",
		"/links?page=2":    "/links?page=2",
		"https://evil.com": "/dashboard",
		"//evil.com":       "/dashboard",
		"":                 "/dashboard",
		"dashboard":        "/dashboard",
	}
	for in, want := range cases {
		if got := SafeNext(in); got != want {
			t.Fatalf("SafeNext(%q)=%q want %q", in, got, want)
		}
	}
}
