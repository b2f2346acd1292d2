//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashureev/goalpath/internal/domain"
	"github.com/ashureev/goalpath/internal/goals"
	"github.com/ashureev/goalpath/internal/identity"
	"github.com/ashureev/goalpath/internal/store"
)

// fakeRepo is an in-memory store.Repository.
type fakeRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	goals map[string]*domain.Goal
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*domain.User{}, goals: map[string]*domain.Goal{}}
}

func cloneGoal(g *domain.Goal) *domain.Goal {
	c := *g
	c.Roadmap = slices.Clone(g.Roadmap)
	return &c
}

func (f *fakeRepo) CreateUser(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicateEmail
		}
	}
	c := *u
	f.users[u.UserID] = &c
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) CreateGoal(_ context.Context, g *domain.Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goals[g.ID] = cloneGoal(g)
	return nil
}

func (f *fakeRepo) ListGoals(_ context.Context, userID string) ([]*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Goal{}
	for _, g := range f.goals {
		if g.UserID == userID {
			out = append(out, cloneGoal(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) GetGoal(_ context.Context, userID, goalID string) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, store.ErrNotFound
	}
	return cloneGoal(g), nil
}

func (f *fakeRepo) UpdateGoal(_ context.Context, g *domain.Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.goals[g.ID]
	if !ok || existing.UserID != g.UserID {
		return store.ErrNotFound
	}
	f.goals[g.ID] = cloneGoal(g)
	return nil
}

func (f *fakeRepo) SetWeekCompleted(_ context.Context, userID, goalID, weekID string, completed bool) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, store.ErrNotFound
	}
	i := g.FindWeek(weekID)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	g.Roadmap[i].Completed = completed
	g.RecomputeProgress()
	return cloneGoal(g), nil
}

func (f *fakeRepo) DeleteGoal(_ context.Context, userID, goalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[goalID]
	if !ok || g.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.goals, goalID)
	return nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

type fakeGenerator struct{ out string }

func (f fakeGenerator) Generate(context.Context, string) (string, error) { return f.out, nil }

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

const testRoadmap = `{"title":"Learning Roadmap for Go","duration":"2 weeks","roadmap":[
 {"week":1,"title":"Week 1: Syntax","description":"Basics"},
 {"week":2,"title":"Week 2: Concurrency","description":"Goroutines"}]}`

type testServer struct {
	router http.Handler
	repo   *fakeRepo
	tokens *identity.Tokens
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	repo := newFakeRepo()
	s := newTestServerWithRepo(t, limit, repo)
	s.repo = repo
	return s
}

func newTestServerWithRepo(t *testing.T, limit int, repo store.Repository) *testServer {
	t.Helper()

	tokens := identity.NewTokens("test-secret", time.Hour)
	limiter := NewRateLimiter(limit, time.Minute)
	t.Cleanup(limiter.Stop)

	h := NewHandler(Options{
		Repo:     repo,
		Planner:  goals.NewPlanner(fakeGenerator{out: testRoadmap}, goals.PlannerConfig{}),
		Tokens:   tokens,
		Limiter:  limiter,
		Sessions: fixedCount(3),
	})
	h.bcryptCost = bcrypt.MinCost

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	h.RegisterUserRoutes(r)
	h.RegisterGoalRoutes(r)
	return &testServer{router: r, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.tokens.Issue(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return tok
}

type goalEnvelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *domain.Goal `json:"data"`
}

func decodeGoal(t *testing.T, w *httptest.ResponseRecorder) goalEnvelope {
	t.Helper()
	var env goalEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return env
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 10)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var got healthResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "OK" || got.ConnectedSessions != 3 {
		t.Errorf("Unexpected health: %+v", got)
	}
	if _, err := time.Parse(time.RFC3339, got.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not ISO-8601: %v", got.Timestamp, err)
	}
}

func TestSignupLogin(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 10)

	creds := map[string]string{"name": "Ada", "email": "Ada@Example.com", "password": "hunter22"}
	if w := s.do(t, http.MethodPost, "/user/signup", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body)
	}
	if w := s.do(t, http.MethodPost, "/user/signup", "", creds); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for duplicate, got %d", w.Code)
	}

	bad := map[string]string{"email": "nope", "password": "hunter22"}
	if w := s.do(t, http.MethodPost, "/user/signup", "", bad); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad email, got %d", w.Code)
	}

	wrong := map[string]string{"email": "ada@example.com", "password": "wrong-password"}
	if w := s.do(t, http.MethodPost, "/user/login", "", wrong); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}

	w := s.do(t, http.MethodPost, "/user/login", "", map[string]string{"email": "ada@example.com", "password": "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	var tok tokenResponse
	if err := json.NewDecoder(w.Body).Decode(&tok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := s.tokens.Parse(tok.Token)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("Expected email claim, got %q", claims.Email)
	}
}

func TestGoals_RequireAuth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 10)

	if w := s.do(t, http.MethodGet, "/goals", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestGoals_Lifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 10)
	alice := s.token(t, "alice")
	bob := s.token(t, "bob")

	w := s.do(t, http.MethodPost, "/goals/generate", alice, map[string]string{"goal": "Learn Go", "complexity": "2 weeks"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body)
	}
	created := decodeGoal(t, w).Data
	if created.UserID != "alice" || len(created.Roadmap) != 2 || created.Progress != 0 {
		t.Fatalf("Unexpected goal: %+v", created)
	}

	if w := s.do(t, http.MethodGet, "/goals/"+created.ID, bob, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's goal, got %d", w.Code)
	}

	path := "/goals/" + created.ID + "/weeks/" + created.Roadmap[0].ID
	w = s.do(t, http.MethodPut, path, alice, map[string]bool{"completed": true})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := decodeGoal(t, w).Data.Progress; got != 50 {
		t.Errorf("Expected progress 50, got %d", got)
	}

	roadmap := []domain.Week{
		{Title: "A", Completed: true},
		{Title: "B", Completed: true},
		{Title: "C"},
		{Title: "D"},
		{Title: "E"},
	}
	w = s.do(t, http.MethodPut, "/goals/"+created.ID, alice, map[string]any{"roadmap": roadmap, "progress": 99})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	updated := decodeGoal(t, w).Data
	if updated.Progress != 40 {
		t.Errorf("Expected recomputed progress 40, got %d", updated.Progress)
	}
	if updated.Roadmap[4].ID == "" || updated.Roadmap[4].Week != 5 {
		t.Errorf("Expected new week to get id and number, got %+v", updated.Roadmap[4])
	}

	w = s.do(t, http.MethodGet, "/goals", alice, nil)
	var list struct {
		Data []domain.Goal `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 1 {
		t.Errorf("Expected 1 goal, got %d", len(list.Data))
	}

	if w := s.do(t, http.MethodDelete, "/goals/"+created.ID, bob, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting another user's goal, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/goals/"+created.ID, alice, nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/goals/"+created.ID, alice, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestUpdateGoal_WeekIDs(t *testing.T) {
	t.Parallel()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "goalpath.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	s := newTestServerWithRepo(t, 10, repo)
	alice := s.token(t, "alice")
	bob := s.token(t, "bob")

	generate := func(token string) *domain.Goal {
		t.Helper()
		w := s.do(t, http.MethodPost, "/goals/generate", token, map[string]string{"goal": "Learn Go", "duration": "2 weeks"})
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body)
		}
		return decodeGoal(t, w).Data
	}
	a := generate(alice)
	b := generate(alice)
	foreign := generate(bob)

	kept := a.Roadmap[0].ID
	roadmap := []domain.Week{
		{ID: kept, Title: "Kept", Completed: true},
		{ID: kept, Title: "Repeated"},
		{ID: b.Roadmap[0].ID, Title: "Other goal"},
		{ID: foreign.Roadmap[0].ID, Title: "Other user"},
		{ID: "made-up", Title: "Unknown"},
	}
	w := s.do(t, http.MethodPut, "/goals/"+a.ID, alice, map[string]any{"roadmap": roadmap})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	updated := decodeGoal(t, w).Data

	if updated.Roadmap[0].ID != kept {
		t.Errorf("Expected owned week id to be kept, got %q", updated.Roadmap[0].ID)
	}
	ids := map[string]bool{}
	for _, wk := range updated.Roadmap {
		if ids[wk.ID] {
			t.Errorf("Duplicate week id %q", wk.ID)
		}
		ids[wk.ID] = true
	}
	for _, other := range []string{b.Roadmap[0].ID, foreign.Roadmap[0].ID, "made-up"} {
		if ids[other] {
			t.Errorf("Expected foreign id %q to be replaced", other)
		}
	}
	if updated.Progress != 20 {
		t.Errorf("Expected progress 20, got %d", updated.Progress)
	}

	// The other goals are untouched.
	w = s.do(t, http.MethodGet, "/goals/"+b.ID, alice, nil)
	if got := decodeGoal(t, w).Data; len(got.Roadmap) != 2 || got.Roadmap[0].ID != b.Roadmap[0].ID {
		t.Errorf("Expected goal B unchanged, got %+v", got.Roadmap)
	}

	w = s.do(t, http.MethodPut, "/goals/"+a.ID, alice, map[string]any{"roadmap": []domain.Week{{Title: "  "}}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for untitled week, got %d", w.Code)
	}
}

func TestGenerate_Validation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 10)
	tok := s.token(t, "alice")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing goal", map[string]string{"duration": "2 weeks"}},
		{"missing duration", map[string]string{"goal": "Learn Go"}},
		{"level is not a duration", map[string]string{"goal": "Learn Go", "complexity": "beginner"}},
	}
	for _, tt := range tests {
		if w := s.do(t, http.MethodPost, "/goals/generate", tok, tt.body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, w.Code)
		}
	}

	w := s.do(t, http.MethodPost, "/goals/generate", tok, map[string]string{"goal": "Learn Go", "duration": "2 weeks", "complexity": "Beginner"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	if got := decodeGoal(t, w).Data.Complexity; got != domain.ComplexityBeginner {
		t.Errorf("Expected beginner complexity, got %q", got)
	}
}

func TestGenerate_RateLimited(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 1)
	tok := s.token(t, "alice")
	body := map[string]string{"goal": "Learn Go", "duration": "2 weeks"}

	if w := s.do(t, http.MethodPost, "/goals/generate", tok, body); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/goals/generate", tok, body); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("Expected first two requests to pass")
	}
	if rl.Allow("a") {
		t.Error("Expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Error("Expected other key to be independent")
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("a") {
		t.Error("Expected request after window to pass")
	}

	now = now.Add(2 * time.Minute)
	rl.evict()
	rl.mu.Lock()
	n := len(rl.requests)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("Expected eviction to drop stale keys, %d left", n)
	}
}
