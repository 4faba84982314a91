package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"warehousematch/auth"
	"warehousematch/engagement"
)

var apiTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	router      *gin.Engine
	authService *auth.Service
	repo        *stubEngagementRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService := auth.NewService(&stubUserRepo{users: map[string]auth.User{}}, "test-secret", time.Hour)

	repo := newStubEngagementRepo()
	engine := engagement.NewEngine(repo, engagement.DefaultDeadlinePolicy()).
		WithClock(func() time.Time { return apiTime })
	engagements := engagement.NewService(repo, engine)

	return &fixture{
		router:      NewRouter("test", zap.NewNop(), authService, engagements),
		authService: authService,
		repo:        repo,
	}
}

func (f *fixture) register(t *testing.T, email string, role auth.Role) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"longenough","full_name":"Test User","role":%q}`, email, role)
	w := f.do(t, http.MethodPost, "/api/auth/register", body, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Data UserDTO `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.Data.ID
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"longenough"}`, email)
	w := f.do(t, http.MethodPost, "/api/auth/login", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Data AuthResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Data.Token
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seedEngagement(buyerID, supplierID string) engagement.Engagement {
	deadline := apiTime.Add(24 * time.Hour)
	e := engagement.Engagement{
		ID:          "eng-1",
		BuyerID:     buyerID,
		SupplierID:  supplierID,
		Status:      engagement.StatusDealPingSent,
		Version:     1,
		Path:        engagement.PathUnset,
		Tier:        engagement.Tier1,
		MonthlyRate: 4200,
		DeadlineAt:  &deadline,
		CreatedAt:   apiTime,
		UpdatedAt:   apiTime,
	}
	created, _ := f.repo.Create(context.Background(), e)
	return created
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	f.register(t, "buyer@example.com", auth.RoleBuyer)
	token := f.login(t, "buyer@example.com")
	if token == "" {
		t.Fatalf("empty token")
	}

	// Wrong password.
	w := f.do(t, http.MethodPost, "/api/auth/login", `{"email":"buyer@example.com","password":"wrong-pass"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/engagements", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/engagements", "", "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", w.Code)
	}
}

func TestAPI_GetEngagement(t *testing.T) {
	f := newFixture(t)
	buyerID := f.register(t, "buyer@example.com", auth.RoleBuyer)
	supplierID := f.register(t, "supplier@example.com", auth.RoleSupplier)
	f.register(t, "other@example.com", auth.RoleBuyer)
	f.seedEngagement(buyerID, supplierID)

	buyerToken := f.login(t, "buyer@example.com")
	w := f.do(t, http.MethodGet, "/api/engagements/eng-1", "", buyerToken)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data EngagementDTO `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != "deal_ping_sent" || resp.Data.StatusBucket != "action_needed" {
		t.Errorf("dto = %s/%s", resp.Data.Status, resp.Data.StatusBucket)
	}

	// Strangers may not read it.
	otherToken := f.login(t, "other@example.com")
	if w := f.do(t, http.MethodGet, "/api/engagements/eng-1", "", otherToken); w.Code != http.StatusForbidden {
		t.Errorf("stranger status = %d, want 403", w.Code)
	}

	if w := f.do(t, http.MethodGet, "/api/engagements/missing", "", buyerToken); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestAPI_ApplyEvent(t *testing.T) {
	f := newFixture(t)
	buyerID := f.register(t, "buyer@example.com", auth.RoleBuyer)
	supplierID := f.register(t, "supplier@example.com", auth.RoleSupplier)
	f.seedEngagement(buyerID, supplierID)

	supplierToken := f.login(t, "supplier@example.com")
	w := f.do(t, http.MethodPost, "/api/engagements/eng-1/events", `{"event":"accept","expected_version":1}`, supplierToken)
	if w.Code != http.StatusOK {
		t.Fatalf("accept status = %d body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data EngagementDTO `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != "deal_ping_accepted" || resp.Data.Version != 2 {
		t.Errorf("dto = %s v%d, want deal_ping_accepted v2", resp.Data.Status, resp.Data.Version)
	}

	// Stale version maps to 409.
	w = f.do(t, http.MethodPost, "/api/engagements/eng-1/events", `{"event":"decline","expected_version":1,"reason":"Other"}`, supplierToken)
	if w.Code != http.StatusConflict {
		t.Errorf("stale version status = %d, want 409", w.Code)
	}

	// An illegal event also lands on 409.
	w = f.do(t, http.MethodPost, "/api/engagements/eng-1/events", `{"event":"accept","expected_version":2}`, supplierToken)
	if w.Code != http.StatusConflict {
		t.Errorf("illegal event status = %d, want 409", w.Code)
	}

	// A reason outside the closed set maps to 422.
	w = f.do(t, http.MethodPost, "/api/engagements/eng-1/events", `{"event":"decline","expected_version":2,"reason":"Bad vibes"}`, supplierToken)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad reason status = %d, want 422", w.Code)
	}
}

func TestAPI_ApplyEventActorResolution(t *testing.T) {
	f := newFixture(t)
	buyerID := f.register(t, "buyer@example.com", auth.RoleBuyer)
	supplierID := f.register(t, "supplier@example.com", auth.RoleSupplier)
	f.register(t, "other@example.com", auth.RoleSupplier)
	f.seedEngagement(buyerID, supplierID)

	// Only the supplier may accept; the buyer's role is resolved
	// server-side, never taken from the request.
	buyerToken := f.login(t, "buyer@example.com")
	w := f.do(t, http.MethodPost, "/api/engagements/eng-1/events", `{"event":"accept","expected_version":1}`, buyerToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("buyer accept status = %d, want 403", w.Code)
	}

	// A supplier who is not party to the engagement is rejected outright.
	otherToken := f.login(t, "other@example.com")
	w = f.do(t, http.MethodPost, "/api/engagements/eng-1/events", `{"event":"accept","expected_version":1}`, otherToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger accept status = %d, want 403", w.Code)
	}
}

func TestAPI_Timeline(t *testing.T) {
	f := newFixture(t)
	buyerID := f.register(t, "buyer@example.com", auth.RoleBuyer)
	supplierID := f.register(t, "supplier@example.com", auth.RoleSupplier)
	f.seedEngagement(buyerID, supplierID)

	supplierToken := f.login(t, "supplier@example.com")
	if w := f.do(t, http.MethodPost, "/api/engagements/eng-1/events", `{"event":"accept","expected_version":1}`, supplierToken); w.Code != http.StatusOK {
		t.Fatalf("accept: %d", w.Code)
	}

	w := f.do(t, http.MethodGet, "/api/engagements/eng-1/timeline", "", supplierToken)
	if w.Code != http.StatusOK {
		t.Fatalf("timeline status = %d", w.Code)
	}

	var resp struct {
		Data []TimelineEntryDTO `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Seq != 1 || resp.Data[0].EventType != "accept" {
		t.Errorf("timeline = %+v", resp.Data)
	}
}

func TestAPI_CreateEngagementAdminOnly(t *testing.T) {
	f := newFixture(t)
	buyerID := f.register(t, "buyer@example.com", auth.RoleBuyer)
	supplierID := f.register(t, "supplier@example.com", auth.RoleSupplier)
	f.register(t, "admin@example.com", auth.RoleAdmin)

	body := fmt.Sprintf(`{"buyer_id":%q,"supplier_id":%q,"tier":"tier_1","match_score":0.8,"monthly_rate":3500,"size_sqft":9000}`, buyerID, supplierID)

	buyerToken := f.login(t, "buyer@example.com")
	if w := f.do(t, http.MethodPost, "/api/engagements", body, buyerToken); w.Code != http.StatusForbidden {
		t.Errorf("buyer create status = %d, want 403", w.Code)
	}

	adminToken := f.login(t, "admin@example.com")
	w := f.do(t, http.MethodPost, "/api/engagements", body, adminToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create status = %d body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data EngagementDTO `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != "deal_ping_sent" || resp.Data.Version != 1 {
		t.Errorf("created = %s v%d", resp.Data.Status, resp.Data.Version)
	}
	if resp.Data.DeadlineAt == nil {
		t.Errorf("response deadline not armed")
	}
}

func TestAPI_ListEngagementsScopedToCaller(t *testing.T) {
	f := newFixture(t)
	buyerID := f.register(t, "buyer@example.com", auth.RoleBuyer)
	supplierID := f.register(t, "supplier@example.com", auth.RoleSupplier)
	otherID := f.register(t, "other@example.com", auth.RoleBuyer)
	f.seedEngagement(buyerID, supplierID)
	_ = otherID

	buyerToken := f.login(t, "buyer@example.com")
	w := f.do(t, http.MethodGet, "/api/engagements?bucket=action_needed", "", buyerToken)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data EngagementListResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 1 || len(resp.Data.Engagements) != 1 {
		t.Errorf("buyer list total = %d", resp.Data.Total)
	}

	otherToken := f.login(t, "other@example.com")
	w = f.do(t, http.MethodGet, "/api/engagements", "", otherToken)
	if w.Code != http.StatusOK {
		t.Fatalf("other list status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 0 {
		t.Errorf("other buyer sees %d engagements, want 0", resp.Data.Total)
	}
}

// stubUserRepo is an in-memory auth.Repository.
type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]auth.User
	seq   int
}

func (s *stubUserRepo) CreateUser(_ context.Context, params auth.CreateUserParams) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[params.Email]; exists {
		return auth.User{}, auth.ErrDuplicateEmail
	}
	s.seq++
	u := auth.User{
		ID:           fmt.Sprintf("user-%d", s.seq),
		Email:        params.Email,
		FullName:     params.FullName,
		CompanyName:  params.CompanyName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    apiTime,
		UpdatedAt:    apiTime,
	}
	s.users[params.Email] = u
	return u, nil
}

func (s *stubUserRepo) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUserRepo) GetUserByID(_ context.Context, id string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

// stubEngagementRepo is an in-memory engagement.Repository with the same
// compare-and-swap contract as the PostgreSQL implementation.
type stubEngagementRepo struct {
	mu          sync.Mutex
	engagements map[string]engagement.Engagement
	events      map[string][]engagement.EventLogEntry
}

func newStubEngagementRepo() *stubEngagementRepo {
	return &stubEngagementRepo{
		engagements: map[string]engagement.Engagement{},
		events:      map[string][]engagement.EventLogEntry{},
	}
}

func (s *stubEngagementRepo) Get(_ context.Context, id string) (engagement.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engagements[id]
	if !ok {
		return engagement.Engagement{}, engagement.ErrNotFound
	}
	return e, nil
}

func (s *stubEngagementRepo) List(_ context.Context, filter engagement.ListFilter) ([]engagement.Engagement, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []engagement.Engagement{}
	for _, e := range s.engagements {
		if filter.BuyerID != "" && e.BuyerID != filter.BuyerID {
			continue
		}
		if filter.SupplierID != "" && e.SupplierID != filter.SupplierID {
			continue
		}
		if filter.Bucket != "" {
			if b, _ := engagement.BucketOf(e.Status); b != filter.Bucket {
				continue
			}
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (s *stubEngagementRepo) ListDue(_ context.Context, statuses []engagement.Status, cutoff time.Time, _ int) ([]engagement.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []engagement.Engagement{}
	for _, e := range s.engagements {
		if e.DeadlineAt == nil || e.DeadlineAt.After(cutoff) {
			continue
		}
		for _, st := range statuses {
			if e.Status == st {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (s *stubEngagementRepo) Timeline(_ context.Context, id string) ([]engagement.EventLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engagement.EventLogEntry, len(s.events[id]))
	copy(out, s.events[id])
	return out, nil
}

func (s *stubEngagementRepo) Create(_ context.Context, e engagement.Engagement) (engagement.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = fmt.Sprintf("eng-%d", len(s.engagements)+1)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = apiTime
		e.UpdatedAt = apiTime
	}
	s.engagements[e.ID] = e
	return e, nil
}

func (s *stubEngagementRepo) Commit(_ context.Context, expectedVersion int64, e engagement.Engagement, entries []engagement.EventLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.engagements[e.ID]
	if !ok {
		return engagement.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return engagement.ErrVersionConflict
	}
	s.engagements[e.ID] = e
	s.events[e.ID] = append(s.events[e.ID], entries...)
	return nil
}
