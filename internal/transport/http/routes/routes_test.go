package routes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/config"
	"github.com/David567rs/LoginAna/internal/infra/security"
	"github.com/David567rs/LoginAna/internal/repository/memory"
	"github.com/David567rs/LoginAna/internal/transport/http/middleware"
	httproutes "github.com/David567rs/LoginAna/internal/transport/http/routes"
	"github.com/David567rs/LoginAna/internal/usecase"
)

const (
	password = "Str0ng!Passw0rd#2025"
	phone    = "+5215512345678"
)

var (
	sixDigits = regexp.MustCompile(`\b(\d{6})\b`)
	linkToken = regexp.MustCompile(`token=([A-Za-z0-9]+)`)
)

type outbox struct {
	mu   sync.Mutex
	last []string
}

func (o *outbox) SendEmail(_ context.Context, _, _, html string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = append(o.last, html)
	return nil
}

func (o *outbox) SendSMS(_ context.Context, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = append(o.last, body)
	return nil
}

func (o *outbox) latest(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.last) == 0 {
		t.Fatal("nothing was delivered")
	}
	return o.last[len(o.last)-1]
}

type server struct {
	router *gin.Engine
	email  *outbox
	sms    *outbox
}

func newServer(t *testing.T, cfg *config.AppConfig, limiter *middleware.RateLimiter) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	users := memory.NewUserRepository()
	engine := usecase.NewChallengeEngine(memory.NewChallengeStore(), log)
	verification := usecase.NewVerificationService(users, nil, log)
	manager, err := security.NewHMACManager([]byte("routes-test-secret"), "login-ana")
	if err != nil {
		t.Fatalf("NewHMACManager: %v", err)
	}
	tokens := usecase.NewTokenService(manager, time.Hour, 10*time.Minute)
	hasher, err := security.NewArgon2Hasher(port.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}

	email, sms := &outbox{}, &outbox{}
	auth, err := usecase.NewAuthService(usecase.AuthDependencies{
		Users:        users,
		Hasher:       hasher,
		Policy:       security.NewPasswordPolicy(security.PasswordPolicyConfig{}),
		Challenges:   engine,
		Verification: verification,
		Tokens:       tokens,
		Email:        email,
		SMS:          sms,
	}, usecase.AuthSettings{ClientURL: cfg.Verification.ClientURL}, log)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("NewHTTPMetrics: %v", err)
	}

	router := httproutes.Register(httproutes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Auth:        auth,
		Tokens:      tokens,
		JWTManager:  manager,
		RateLimiter: limiter,
		Metrics:     metrics,
		Gatherer:    prometheus.NewRegistry(),
	})
	return &server{router: router, email: email, sms: sms}
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App:          config.AppSettings{Env: config.EnvDevelopment},
		Verification: config.VerificationSettings{ClientURL: "https://app.example.com"},
	}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func (s *server) registerVerified(t *testing.T, email string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ana Torres", "email": email, "password": password, "phone": phone,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %s", rr.Code, rr.Body.String())
	}

	token := linkToken.FindStringSubmatch(s.email.latest(t))[1]
	rr = s.do(t, http.MethodGet, "/auth/verify-email?json=1&token="+token, nil)
	if body := decode(t, rr); body["ok"] != true {
		t.Fatalf("verify-email: %s", rr.Body.String())
	}

	code := sixDigits.FindStringSubmatch(s.sms.latest(t))[1]
	rr = s.do(t, http.MethodPost, "/auth/verify-sms", map[string]string{"email": email, "code": code})
	if body := decode(t, rr); body["ok"] != true {
		t.Fatalf("verify-sms: %s", rr.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := httproutes.Register(httproutes.Dependencies{
		Config: testConfig(),
		Logger: zaptest.NewLogger(t),
		Readiness: map[string]func(context.Context) error{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newServer(t, testConfig(), nil)

	rr := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ana Torres", "email": "ana@example.com", "password": password, "phone": phone,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	if body := decode(t, rr); body["ok"] != true || body["message"] == "" {
		t.Fatalf("unexpected body %v", body)
	}

	rr = s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": password})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("login before verification: expected 401, got %d", rr.Code)
	}
	if body := decode(t, rr); body["error"] != "invalid credentials" || body["trace_id"] == "" {
		t.Fatalf("unexpected error body %v", body)
	}

	token := linkToken.FindStringSubmatch(s.email.latest(t))[1]
	if body := decode(t, s.do(t, http.MethodGet, "/auth/verify-email?json=1&token="+token, nil)); body["ok"] != true {
		t.Fatalf("verify-email failed: %v", body)
	}
	code := sixDigits.FindStringSubmatch(s.sms.latest(t))[1]
	if body := decode(t, s.do(t, http.MethodPost, "/auth/verify-sms", map[string]string{"email": "ana@example.com", "code": code})); body["ok"] != true {
		t.Fatalf("verify-sms failed: %v", body)
	}

	rr = s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": password})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	access, _ := decode(t, rr)["access_token"].(string)
	if access == "" {
		t.Fatal("expected access_token")
	}

	rr = s.do(t, http.MethodGet, "/auth/me", nil, "Authorization", "Bearer "+access)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rr.Code)
	}
	if body := decode(t, rr); body["email"] != "ana@example.com" || body["name"] != "Ana Torres" {
		t.Fatalf("unexpected me body %v", body)
	}

	if rr := s.do(t, http.MethodGet, "/auth/me", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", rr.Code)
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	body := map[string]string{"name": "Ana", "email": "ana@example.com", "password": password, "phone": phone}

	if rr := s.do(t, http.MethodPost, "/auth/register", body); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/auth/register", body); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rr.Code)
	}

	body["email"] = "other@example.com"
	body["phone"] = "5512345678"
	if rr := s.do(t, http.MethodPost, "/auth/register", body); rr.Code != http.StatusBadRequest {
		t.Fatalf("local phone: expected 400, got %d", rr.Code)
	}

	if rr := s.do(t, http.MethodPost, "/auth/register", map[string]string{"email": "x"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad body: expected 400, got %d", rr.Code)
	}
}

func TestSMSTwoFactorFlow(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	s.registerVerified(t, "ana@example.com")

	rr := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": password, "method": "sms"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["two_factor_required"] != true || body["method"] != "sms" {
		t.Fatalf("unexpected login body %v", body)
	}
	challengeID, _ := body["challengeId"].(string)
	code := sixDigits.FindStringSubmatch(s.sms.latest(t))[1]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rr = s.do(t, http.MethodPost, "/auth/2fa/verify", map[string]string{"challengeId": challengeID, "code": wrong})
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["error"] != "invalid code" {
		t.Fatalf("wrong code: expected 401 invalid code, got %d %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/auth/2fa/verify", map[string]string{"challengeId": challengeID, "code": code})
	if rr.Code != http.StatusOK {
		t.Fatalf("right code: expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if token, _ := decode(t, rr)["access_token"].(string); token == "" {
		t.Fatal("expected access_token")
	}

	rr = s.do(t, http.MethodPost, "/auth/2fa/verify", map[string]string{"challengeId": challengeID, "code": code})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replay: expected 401, got %d", rr.Code)
	}

	if rr := s.do(t, http.MethodPost, "/auth/2fa/verify", map[string]string{"challengeId": challengeID, "code": "12ab56"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("non numeric code: expected 400, got %d", rr.Code)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	s.registerVerified(t, "ana@example.com")

	rr := s.do(t, http.MethodPost, "/auth/password/forgot", map[string]string{"email": "nobody@example.com", "method": "email"})
	if body := decode(t, rr); rr.Code != http.StatusOK || body["ok"] != true || body["challengeId"] != nil {
		t.Fatalf("unknown email: unexpected %d %v", rr.Code, body)
	}

	rr = s.do(t, http.MethodPost, "/auth/password/forgot", map[string]string{"email": "ana@example.com", "method": "email"})
	challengeID, _ := decode(t, rr)["challengeId"].(string)
	if challengeID == "" {
		t.Fatalf("expected challengeId, got %s", rr.Body.String())
	}
	code := sixDigits.FindStringSubmatch(s.email.latest(t))[1]

	rr = s.do(t, http.MethodPost, "/auth/2fa/verify", map[string]string{"challengeId": challengeID, "code": code})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("recovery code at 2fa: expected 401, got %d %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/auth/password/verify", map[string]string{"challengeId": challengeID, "code": code})
	resetToken, _ := decode(t, rr)["reset_token"].(string)
	if resetToken == "" {
		t.Fatalf("expected reset_token, got %d %s", rr.Code, rr.Body.String())
	}

	if rr := s.do(t, http.MethodPost, "/auth/password/reset", map[string]string{"token": "garbage", "password": "N3w!Passphrase#2025"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/auth/password/reset", map[string]string{"token": resetToken, "password": "N3w!Passphrase#2025"}); rr.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d %s", rr.Code, rr.Body.String())
	}

	if rr := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": "N3w!Passphrase#2025"}); rr.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", rr.Code)
	}
}

func TestVerifyEmailRedirectsBrowsers(t *testing.T) {
	s := newServer(t, testConfig(), nil)

	rr := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": password, "phone": phone,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d", rr.Code)
	}
	token := linkToken.FindStringSubmatch(s.email.latest(t))[1]

	rr = s.do(t, http.MethodGet, "/auth/verify-email?json=1&debug=1&token="+token, nil)
	details, _ := decode(t, rr)["details"].(map[string]any)
	if details["exists"] != true || details["expired"] != false || details["email"] != "ana@example.com" {
		t.Fatalf("unexpected debug details %v", details)
	}

	rr = s.do(t, http.MethodGet, "/auth/verify-email?token="+token, nil)
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "https://app.example.com/?emailVerified=0" {
		t.Fatalf("already used token: unexpected %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestDiagnosticsRoutes(t *testing.T) {
	s := newServer(t, testConfig(), nil)

	body := decode(t, s.do(t, http.MethodGet, "/auth/ping", nil))
	if body["ok"] != true || body["msg"] != "Auth API alive" {
		t.Fatalf("unexpected ping %v", body)
	}

	if rr := s.do(t, http.MethodGet, "/auth/debug-user", nil); rr.Code != http.StatusBadRequest || decode(t, rr)["error"] != "email required" {
		t.Fatalf("expected email required, got %d", rr.Code)
	}

	prodCfg := testConfig()
	prodCfg.App.Env = config.EnvProduction
	prod := newServer(t, prodCfg, nil)
	gin.SetMode(gin.TestMode)
	if rr := prod.do(t, http.MethodGet, "/auth/debug-user?email=ana@example.com", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("debug-user must not exist in production, got %d", rr.Code)
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitSettings{WindowDuration: time.Minute, LoginMaxAttempts: 2}
	limiter := middleware.NewRateLimiter(memory.NewRateLimitStore(), zaptest.NewLogger(t))
	s := newServer(t, cfg, limiter)

	creds := map[string]string{"email": "ana@example.com", "password": password}
	for i := 0; i < 2; i++ {
		if rr := s.do(t, http.MethodPost, "/auth/login", creds); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rr.Code)
		}
	}
	rr := s.do(t, http.MethodPost, "/auth/login", creds)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}
