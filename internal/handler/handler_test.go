package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"ledger-bot/internal/auth"
	"ledger-bot/internal/config"
	"ledger-bot/internal/domain"
	"ledger-bot/internal/ledger"
	"ledger-bot/internal/middleware"
	"ledger-bot/internal/storage/memory"
)

const (
	testBotToken = "123:bot-token"
	testSecret   = "webhook-secret"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeUpdates struct {
	got []tgbotapi.Update
}

func (f *fakeUpdates) HandleUpdates(_ context.Context, updates []tgbotapi.Update) {
	f.got = append(f.got, updates...)
}

type testServer struct {
	router  *gin.Engine
	svc     *ledger.Service
	tokens  *auth.TokenService
	history *HistoryHandler
	updates *fakeUpdates
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := ledger.NewService(memory.New(), time.UTC)
	tokens := auth.NewTokenService(config.Config{JWTSecret: "test-secret", JWTExpiresIn: time.Hour})

	lh := NewLedgerHandler(svc, time.UTC)
	lh.now = func() time.Time { return testNow }

	s := &testServer{
		router:  gin.New(),
		svc:     svc,
		tokens:  tokens,
		history: NewHistoryHandler(svc, tokens, "https://ledger.example"),
		updates: &fakeUpdates{},
	}
	Register(s.router, Routes{
		Ledger:  lh,
		Login:   NewLoginHandler(auth.NewLoginVerifier(testBotToken, time.Hour), tokens),
		History: s.history,
		Webhook: NewWebhookHandler(s.updates, testSecret),
		Auth:    middleware.NewAuthMiddleware(tokens),
		Members: svc,
	})
	return s
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.svc.SetNickname(ctx, "g1", "u1", "Ken"); err != nil {
		t.Fatalf("SetNickname: %v", err)
	}
	if _, err := s.svc.SetGroupName(ctx, "g1", "Home"); err != nil {
		t.Fatalf("SetGroupName: %v", err)
	}
	entries := []domain.Entry{
		{Item: "lunch", Amount: decimal.NewFromInt(120), ParentCategory: "Food", Kind: "expense", Date: "2025-03-14"},
		{Item: "salary", Amount: decimal.NewFromInt(1000), ParentCategory: "Income", Kind: "income", Date: "2025-03-01"},
	}
	if _, err := s.svc.RecordEntries(ctx, "g1", "u1", entries, testNow); err != nil {
		t.Fatalf("RecordEntries: %v", err)
	}
}

func (s *testServer) do(t *testing.T, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := s.tokens.GenerateToken(auth.Identity{UserID: userID, Name: "Ken Tanaka"})
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(t, http.MethodGet, "/api/v1/me", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp MeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "u1" || resp.DisplayName != "Ken Tanaka" {
		t.Errorf("identity = %q/%q", resp.UserID, resp.DisplayName)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].GroupID != "g1" || resp.Groups[0].GroupName != "Home" || resp.Groups[0].Nickname != "Ken" {
		t.Errorf("groups = %+v", resp.Groups)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/me", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestGroupRoutesRequireMembership(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(t, http.MethodGet, "/api/v1/groups/g1/transactions", "stranger", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestTransactions(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantItems int
	}{
		{"default limit", "", http.StatusOK, 2},
		{"limit one", "?limit=1", http.StatusOK, 1},
		{"zero clamps to one", "?limit=0", http.StatusOK, 1},
		{"not a number", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/v1/groups/g1/transactions"+tt.query, "u1", "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp struct {
				Data []domain.Transaction `json:"data"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Data) != tt.wantItems {
				t.Fatalf("items = %d, want %d", len(resp.Data), tt.wantItems)
			}
			if resp.Data[0].Item != "lunch" {
				t.Errorf("first item = %q, want the latest logical date", resp.Data[0].Item)
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(t, http.MethodGet, "/api/v1/groups/g1/dashboard", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		GroupName string              `json:"groupName"`
		Overview  domain.MonthlyStats `json:"overview"`
		Members   []domain.MemberStat `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.GroupName != "Home" {
		t.Errorf("groupName = %q", resp.GroupName)
	}
	if !resp.Overview.Balance.Equal(decimal.NewFromInt(880)) {
		t.Errorf("balance = %s, want 880", resp.Overview.Balance)
	}
	if len(resp.Members) != 1 || resp.Members[0].PayerName != "Ken" || !resp.Members[0].Total.Equal(decimal.NewFromInt(120)) {
		t.Errorf("members = %+v", resp.Members)
	}
}

func TestSetCategories(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"categories":["Food","Rent"]}`, http.StatusOK},
		{"empty list", `{"categories":[]}`, http.StatusBadRequest},
		{"blank name", `{"categories":["Food","  "]}`, http.StatusBadRequest},
		{"bad json", `{"categories":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPut, "/api/v1/groups/g1/categories", "u1", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body)
			}
		})
	}

	got, err := s.svc.Categories(context.Background(), "g1")
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if strings.Join(got, ",") != "Food,Rent" {
		t.Errorf("categories = %v", got)
	}
}

func signedLogin(id int64, authDate time.Time) auth.TelegramLogin {
	l := auth.TelegramLogin{ID: id, FirstName: "Ken", Username: "ken", AuthDate: authDate.Unix()}
	data := "auth_date=" + strconv.FormatInt(l.AuthDate, 10) +
		"\nfirst_name=" + l.FirstName +
		"\nid=" + strconv.FormatInt(l.ID, 10) +
		"\nusername=" + l.Username
	secret := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(data))
	l.Hash = hex.EncodeToString(mac.Sum(nil))
	return l
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	valid := signedLogin(42, time.Now())
	tampered := valid
	tampered.ID = 43

	tests := []struct {
		name     string
		login    any
		wantCode int
	}{
		{"valid", valid, http.StatusOK},
		{"tampered", tampered, http.StatusUnauthorized},
		{"expired", signedLogin(42, time.Now().Add(-2*time.Hour)), http.StatusUnauthorized},
		{"missing hash", map[string]any{"id": 42, "auth_date": time.Now().Unix()}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.login)
			w := s.do(t, http.MethodPost, "/api/v1/login", "", string(body))
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			id, err := s.tokens.ParseToken(resp.Token)
			if err != nil {
				t.Fatalf("ParseToken: %v", err)
			}
			if id.UserID != "42" || id.Name != "Ken" {
				t.Errorf("identity = %+v", id)
			}
		})
	}
}

func TestHistoryPage(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	link, err := s.history.URL("g1")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse %q: %v", link, err)
	}
	if u.Host != "ledger.example" || u.Path != "/web/history/g1" {
		t.Fatalf("link = %q", link)
	}

	w := s.do(t, http.MethodGet, u.RequestURI(), "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	for _, want := range []string{"Home", "lunch", "salary"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("page missing %q", want)
		}
	}

	// a token for one group does not open another
	other := "/web/history/g2?token=" + u.Query().Get("token")
	if w := s.do(t, http.MethodGet, other, "", ""); w.Code != http.StatusForbidden {
		t.Errorf("foreign group status = %d, want 403", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/web/history/g1?token=garbage", "", ""); w.Code != http.StatusForbidden {
		t.Errorf("bad token status = %d, want 403", w.Code)
	}
}

func TestHistoryURLRequiresDomain(t *testing.T) {
	s := newTestServer(t)
	h := NewHistoryHandler(s.svc, s.tokens, "")
	if _, err := h.URL("g1"); err == nil {
		t.Error("expected error without base URL")
	}
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t)
	body := `{"update_id":7,"message":{"message_id":1,"date":0,"chat":{"id":-100,"type":"group"},"text":"lunch 120"}}`

	tests := []struct {
		name     string
		secret   string
		body     string
		wantCode int
		wantSeen int
	}{
		{"accepted", testSecret, body, http.StatusOK, 1},
		{"wrong secret", "nope", body, http.StatusUnauthorized, 0},
		{"bad json", testSecret, `{"update_id":`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.updates.got = nil
			req := httptest.NewRequest(http.MethodPost, "/telegram", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(telegramSecretHeader, tt.secret)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if len(s.updates.got) != tt.wantSeen {
				t.Fatalf("updates seen = %d, want %d", len(s.updates.got), tt.wantSeen)
			}
			if tt.wantSeen > 0 && s.updates.got[0].UpdateID != 7 {
				t.Errorf("update id = %d", s.updates.got[0].UpdateID)
			}
		})
	}
}
