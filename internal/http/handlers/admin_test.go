package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/tnm3allim/marketplace/internal/auth"
	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/contact"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/http/handlers"
	"github.com/tnm3allim/marketplace/internal/security"
)

type adminHarness struct {
	router   *gin.Engine
	users    *fakeAdminUsers
	inbox    *fakeInbox
	hasher   *security.Hasher
	listings *countingInvalidator
}

func newAdminHarness(t *testing.T) *adminHarness {
	t.Helper()

	hasher, err := security.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	adminHash, err := hasher.Hash("admin-pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	h := &adminHarness{
		users: &fakeAdminUsers{
			hashes: map[int64]string{1: adminHash},
			clients: map[int64]user.User{
				42: {ID: 42, Name: "Sami", Email: "sami@tnm3allim.tn", Role: user.RoleClient},
			},
			counts: map[user.Role]int{user.RoleClient: 12},
		},
		inbox:    &fakeInbox{msgs: []contact.Message{{ID: 5, Name: "Leila", Body: "hello"}}},
		hasher:   hasher,
		listings: &countingInvalidator{},
	}

	ad := handlers.NewAdminHandler(h.users, fakeStats{stats: artisan.Stats{Total: 4, AvgRating: 4.25}}, h.inbox, &fakeBookings{count: 9}, hasher, h.listings)

	r := gin.New()
	g := r.Group("/admin", asCaller(auth.Identity{UserID: 1, Role: user.RoleAdmin}))
	g.GET("/users-data", ad.Users)
	g.GET("/client/:id", ad.Client)
	g.POST("/client/:id/delete", ad.DeleteClient)
	g.DELETE("/client/:id", ad.DeleteClient)
	g.GET("/stats", ad.Stats)
	g.GET("/settings", ad.Settings)
	g.POST("/settings/update-profile", ad.UpdateAccount)
	g.POST("/settings/change-password", ad.ChangePassword)
	g.GET("/user-messages", ad.Messages)
	g.DELETE("/user-messages/:id", ad.DeleteMessage)
	h.router = r

	return h
}

func (h *adminHarness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestAdminStats(t *testing.T) {
	h := newAdminHarness(t)

	w := h.do(http.MethodGet, "/admin/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}

	var got handlers.StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := handlers.StatsResponse{TotalClients: 12, TotalArtisans: 4, AvgRating: 4.25, TotalMessages: 1, TotalBookings: 9}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAdminUsersData(t *testing.T) {
	h := newAdminHarness(t)

	if w := h.do(http.MethodGet, "/admin/users-data?role=admin", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("admin role listing: got %d", w.Code)
	}

	w := h.do(http.MethodGet, "/admin/users-data", "")

	var resp struct {
		Role  string         `json:"role"`
		Users []user.Summary `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Role != "client" || len(resp.Users) != 1 {
		t.Fatalf("default listing %+v", resp)
	}
}

func TestAdminClient(t *testing.T) {
	h := newAdminHarness(t)

	if w := h.do(http.MethodGet, "/admin/client/42", ""); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}

	if w := h.do(http.MethodPost, "/admin/client/42/delete", ""); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}

	if h.listings.n != 1 {
		t.Fatalf("deleting a client should invalidate listings")
	}

	for _, w := range []*httptest.ResponseRecorder{
		h.do(http.MethodGet, "/admin/client/42", ""),
		h.do(http.MethodDelete, "/admin/client/42", ""),
	} {
		if w.Code != http.StatusNotFound {
			t.Fatalf("after delete: got %d", w.Code)
		}
	}
}

func TestAdminSettings(t *testing.T) {
	h := newAdminHarness(t)

	if w := h.do(http.MethodGet, "/admin/settings", ""); w.Code != http.StatusOK {
		t.Fatalf("settings: %d", w.Code)
	}

	if w := h.do(http.MethodPost, "/admin/settings/update-profile", `{"name":"Boss","email":"taken@tnm3allim.tn"}`); w.Code != http.StatusConflict {
		t.Fatalf("email clash: got %d", w.Code)
	}

	if w := h.do(http.MethodPost, "/admin/settings/update-profile", `{"name":"Boss","email":"boss@tnm3allim.tn"}`); w.Code != http.StatusOK {
		t.Fatalf("update: got %d", w.Code)
	}
	if h.users.updated != "boss@tnm3allim.tn" {
		t.Fatalf("update not applied")
	}
}

func TestAdminChangePassword(t *testing.T) {
	h := newAdminHarness(t)

	w := h.do(http.MethodPost, "/admin/settings/change-password", `{"currentPassword":"nope","newPassword":"next"}`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "wrong_password" {
		t.Fatalf("wrong current: got %d %s", w.Code, w.Body.String())
	}

	if w := h.do(http.MethodPost, "/admin/settings/change-password", `{"currentPassword":"admin-pw","newPassword":"next"}`); w.Code != http.StatusOK {
		t.Fatalf("change: got %d", w.Code)
	}

	if !h.hasher.Verify("next", h.users.hashes[1]) {
		t.Fatalf("new hash not stored")
	}
}

func TestAdminMessages(t *testing.T) {
	h := newAdminHarness(t)

	w := h.do(http.MethodGet, "/admin/user-messages", "")

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Total != 1 {
		t.Fatalf("list: %v %+v", err, resp)
	}

	if w := h.do(http.MethodDelete, "/admin/user-messages/5", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := h.do(http.MethodDelete, "/admin/user-messages/5", ""); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}
}

func TestContactCreate(t *testing.T) {
	inbox := &fakeInbox{}
	ch := handlers.NewContactHandler(inbox)

	r := gin.New()
	r.POST("/contact", ch.Create)

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/contact", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := post(`{"name":"Leila","email":"leila@tnm3allim.tn","subject":"Hi","message":"Bonjour"}`); code != http.StatusCreated {
		t.Fatalf("got %d", code)
	}
	if code := post(`{"name":"Leila","email":"not-an-email","message":"x"}`); code != http.StatusBadRequest {
		t.Fatalf("bad email: got %d", code)
	}
	if len(inbox.msgs) != 1 {
		t.Fatalf("stored %d messages", len(inbox.msgs))
	}
}
