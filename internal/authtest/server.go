package authtest

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/password"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
)

// Cookie and header names used by the backend.
const (
	AccessCookie      = "access_token"
	RefreshCookie     = "refresh_token"
	CSRFAccessCookie  = "csrf_access_token"
	CSRFRefreshCookie = "csrf_refresh_token"
	CSRFHeader        = "X-CSRF-TOKEN"
)

// Paths served besides the auth endpoints.
const (
	PathEcho      = "/api/echo"
	PathForbidden = "/api/forbidden"
)

// User is an account known to the backend.
type User struct {
	ID        string
	Username  string
	Password  string
	RoleID    string
	RoleName  string
	CompanyID string
	BranchID  string
}

// Options configures a [Server].
type Options struct {
	Users      []User
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Limiter throttles login and refresh when set.
	Limiter *rate.Limiter
}

// Request records what the client sent.
type Request struct {
	Method    string
	Path      string
	CSRF      string
	RequestID string
	HasCookie bool
}

// Server is the fake backend. Its exported methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	tokens  *jwt.Manager
	limiter *rate.Limiter
	hasher  *password.Hasher
	users   map[string]User
	// hashes holds the Argon2id hash of each user's password
	hashes map[string]string

	mu            sync.Mutex
	revoked       map[string]struct{}
	issuedAccess  []string
	calls         map[string]int
	requests      []Request
	refreshGate   chan struct{}
	refreshDelay  time.Duration
	refreshFails  bool
	statusByPath  map[string]int
	refreshRounds int
}

// DefaultUsers are the accounts of a fresh server.
var DefaultUsers = []User{
	{ID: "1", Username: "admin", Password: "admin123", RoleID: "1", RoleName: "admin"},
	{ID: "2", Username: "branch", Password: "branch123", RoleID: "2", RoleName: "branch", CompanyID: "c1", BranchID: "b1"},
	{ID: "3", Username: "company", Password: "company123", RoleID: "3", RoleName: "company_manager", CompanyID: "c1"},
}

// NewServer starts a backend. Close it when done.
func NewServer(opts Options) *Server {
	if len(opts.Users) == 0 {
		opts.Users = DefaultUsers
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     opts.AccessTTL,
		RefreshTTL:    opts.RefreshTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("authtest-signing-secret-0123456789"),
		Issuer:        "authtest",
	})
	if err != nil {
		panic(err)
	}

	hasher, err := password.NewHasher(password.FixtureConfig())
	if err != nil {
		panic(err)
	}

	s := &Server{
		tokens:       tokens,
		limiter:      opts.Limiter,
		hasher:       hasher,
		users:        make(map[string]User, len(opts.Users)),
		hashes:       make(map[string]string, len(opts.Users)),
		revoked:      make(map[string]struct{}),
		calls:        make(map[string]int),
		statusByPath: make(map[string]int),
	}
	for _, u := range opts.Users {
		hash, err := hasher.Hash(u.Password)
		if err != nil {
			panic(err)
		}
		u.Password = ""
		s.users[u.Username] = u
		s.hashes[u.Username] = hash
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/role-based-login", s.handleLogin)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/me", s.handleMe)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc(PathEcho, s.handleEcho)
	mux.HandleFunc(PathForbidden, s.handleForbidden)

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Requests returns every recorded request in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Expire revokes every access token issued so far. Refresh tokens stay valid.
func (s *Server) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jti := range s.issuedAccess {
		s.revoked[jti] = struct{}{}
	}
	s.issuedAccess = nil
}

// HoldRefresh makes refresh requests block until the returned func is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.refreshGate == gate {
				s.refreshGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// SetRefreshDelay delays every refresh response by d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	s.refreshDelay = d
	s.mu.Unlock()
}

// SetRefreshFailure makes refresh answer 401.
func (s *Server) SetRefreshFailure(fail bool) {
	s.mu.Lock()
	s.refreshFails = fail
	s.mu.Unlock()
}

// SetStatus forces every response on path to status. Zero restores normal
// handling.
func (s *Server) SetStatus(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.statusByPath, path)
		return
	}
	s.statusByPath[path] = status
}

// RefreshRounds returns how many refresh requests were answered successfully.
func (s *Server) RefreshRounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshRounds
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, cookieErr := r.Cookie(AccessCookie)

		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			CSRF:      r.Header.Get(CSRFHeader),
			RequestID: r.Header.Get("X-Request-ID"),
			HasCookie: cookieErr == nil,
		})
		forced := s.statusByPath[r.URL.Path]
		s.mu.Unlock()

		if forced != 0 {
			writeJSON(w, forced, map[string]any{"message": http.StatusText(forced)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.AllowLogin(r.Context(), clientAddr(r)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "Quá nhiều lần đăng nhập, vui lòng thử lại sau"}})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": err.Error()})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Thiếu tên đăng nhập hoặc mật khẩu"})
		return
	}

	user, ok := s.users[req.Username]
	if ok {
		ok, _ = s.hasher.Verify(req.Password, s.hashes[req.Username])
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Tên đăng nhập hoặc mật khẩu không đúng"})
		return
	}
	_ = s.limiter.ResetLogin(r.Context(), clientAddr(r))

	id := identity(user)
	if err := s.issueAccess(w, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": err.Error()})
		return
	}
	refresh, err := s.tokens.Mint(jwt.TypeRefresh, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": err.Error()})
		return
	}
	setTokenCookies(w, RefreshCookie, CSRFRefreshCookie, refresh)

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Đăng nhập thành công",
		"roleId":    user.RoleID,
		"companyId": nullable(user.CompanyID),
		"branchId":  nullable(user.BranchID),
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"roleId":   user.RoleID,
			"roleName": user.RoleName,
		},
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(r, false)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"authenticated": false,
			"message":       "Lấy thông tin người dùng thất bại",
		})
		return
	}
	id := claims.Identity()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Lấy thông tin người dùng thành công",
		"id":            id.UserID,
		"username":      id.Username,
		"roleId":        id.RoleID,
		"roleName":      id.RoleName,
		"companyId":     nullable(id.CompanyID),
		"branchId":      nullable(id.BranchID),
		"authenticated": true,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate, delay, fail := s.refreshGate, s.refreshDelay, s.refreshFails
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Token has been revoked"})
		return
	}

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Missing cookie \"refresh_token\""})
		return
	}
	claims, err := s.tokens.Parse(cookie.Value, jwt.TypeRefresh)
	if err != nil || s.isRevoked(claims.ID) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Token has expired"})
		return
	}
	if r.Header.Get(CSRFHeader) != claims.CSRF {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "CSRF double submit tokens do not match"})
		return
	}
	if err := s.limiter.AllowRefresh(r.Context(), claims.Subject); errors.Is(err, rate.ErrRateLimited) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "Too many refresh requests"})
		return
	}

	if err := s.issueAccess(w, claims.Identity()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": err.Error()})
		return
	}

	s.mu.Lock()
	s.refreshRounds++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Token đã được làm mới thành công",
		"roleId":  claims.RoleID,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(AccessCookie); err == nil {
		if claims, err := jwt.Inspect(cookie.Value); err == nil && claims.ID != "" {
			s.mu.Lock()
			s.revoked[claims.ID] = struct{}{}
			s.mu.Unlock()
		}
	}
	for _, name := range []string{AccessCookie, CSRFAccessCookie, RefreshCookie, CSRFRefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Đăng xuất thành công"})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(r, isMutating(r.Method))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Token has expired"})
		return
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	writeJSON(w, http.StatusOK, map[string]any{
		"method": r.Method,
		"user":   claims.Subject,
		"body":   string(body),
	})
}

func (s *Server) handleForbidden(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r, isMutating(r.Method)); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Token has expired"})
		return
	}
	writeJSON(w, http.StatusForbidden, map[string]any{"message": "Không có quyền truy cập"})
}

// authenticate verifies the access cookie and, for mutating requests, the
// CSRF double submit.
func (s *Server) authenticate(r *http.Request, checkCSRF bool) (*jwt.Claims, bool) {
	cookie, err := r.Cookie(AccessCookie)
	if err != nil {
		return nil, false
	}
	claims, err := s.tokens.Parse(cookie.Value, jwt.TypeAccess)
	if err != nil || s.isRevoked(claims.ID) {
		return nil, false
	}
	if checkCSRF && r.Header.Get(CSRFHeader) != claims.CSRF {
		return nil, false
	}
	return claims, true
}

func (s *Server) issueAccess(w http.ResponseWriter, id jwt.Identity) error {
	access, err := s.tokens.Mint(jwt.TypeAccess, id)
	if err != nil {
		return err
	}
	claims, err := jwt.Inspect(access.Value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.issuedAccess = append(s.issuedAccess, claims.ID)
	s.mu.Unlock()

	setTokenCookies(w, AccessCookie, CSRFAccessCookie, access)
	return nil
}

func (s *Server) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok
}

func setTokenCookies(w http.ResponseWriter, tokenName, csrfName string, tok jwt.Token) {
	http.SetCookie(w, &http.Cookie{Name: tokenName, Value: tok.Value, Path: "/", HttpOnly: true, SameSite: http.SameSiteStrictMode})
	http.SetCookie(w, &http.Cookie{Name: csrfName, Value: tok.CSRF, Path: "/", SameSite: http.SameSiteStrictMode})
}

func identity(u User) jwt.Identity {
	return jwt.Identity{
		UserID:    u.ID,
		Username:  u.Username,
		RoleID:    u.RoleID,
		RoleName:  u.RoleName,
		CompanyID: u.CompanyID,
		BranchID:  u.BranchID,
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
