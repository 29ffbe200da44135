// Package e2etest exercises the full HTTP stack, from registration
// through upload, filtering, donor lookup and export.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	authhandler "github.com/donorflow/donorflow/internal/domain/auth/handler"
	"github.com/donorflow/donorflow/internal/domain/auth/repository"
	authservice "github.com/donorflow/donorflow/internal/domain/auth/service"
	"github.com/donorflow/donorflow/internal/domain/crm"
	crmhandler "github.com/donorflow/donorflow/internal/domain/crm/handler"
	crmrepo "github.com/donorflow/donorflow/internal/domain/crm/repository"
	ingesthandler "github.com/donorflow/donorflow/internal/domain/ingest/handler"
	ingestservice "github.com/donorflow/donorflow/internal/domain/ingest/service"
	"github.com/donorflow/donorflow/internal/middleware"
)

// memUserStore keeps registered users in memory so the auth flow runs
// without a database.
type memUserStore struct {
	nextID  int64
	byEmail map[string]*repository.User
	byID    map[int64]*repository.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		nextID:  1,
		byEmail: make(map[string]*repository.User),
		byID:    make(map[int64]*repository.User),
	}
}

func (s *memUserStore) Create(_ context.Context, username, email, hashedPassword string) (*repository.User, error) {
	if _, ok := s.byEmail[email]; ok {
		return nil, repository.ErrUserExists
	}
	u := &repository.User{ID: s.nextID, Username: username, Email: email, HashedPassword: hashedPassword}
	s.nextID++
	s.byEmail[email] = u
	s.byID[u.ID] = u
	return u, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) GetByID(_ context.Context, id int64) (*repository.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) UpdateProfile(_ context.Context, id int64, update repository.ProfileUpdate) (*repository.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	if update.City != nil {
		u.City = *update.City
	}
	return u, nil
}

// newTestServer wires the same routes as the production router, backed
// by in-memory stores.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := crmrepo.NewMemoryStore()

	tokens := authservice.NewTokenManager("e2e-secret", time.Hour)
	authSvc := authservice.NewAuthService(newMemUserStore(), tokens, logger)
	crmSvc := crm.NewService(store, logger)
	ingestSvc := ingestservice.NewService(store, logger)

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Mount("/auth", authhandler.NewHandler(authSvc, logger).AuthRoutes())
		api.Mount("/crm", crmhandler.NewHandler(crmSvc, logger).Routes())
		api.Mount("/upload_excel", ingesthandler.NewHandler(ingestSvc, 32<<20, logger).Routes())
		api.Group(func(private chi.Router) {
			private.Use(middleware.RequireAuth(authSvc))
			private.Mount("/me", authhandler.NewHandler(authSvc, logger).ProfileRoutes())
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func buildWorkbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func uploadWorkbook(t *testing.T, baseURL, source string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", source+".xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("sources", source))
	require.NoError(t, w.Close())

	resp, err := http.Post(baseURL+"/api/upload_excel/", w.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestDonorFlow(t *testing.T) {
	srv := newTestServer(t)

	var token string
	t.Run("register and login", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/auth/register", map[string]string{
			"username": "aigerim",
			"email":    "aigerim@fond.kz",
			"password": "correct-horse",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()

		resp = postJSON(t, srv.URL+"/api/auth/login", map[string]string{
			"email":    "aigerim@fond.kz",
			"password": "correct-horse",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var login struct {
			Token string `json:"token"`
		}
		decodeBody(t, resp, &login)
		require.NotEmpty(t, login.Token)
		token = login.Token
	})

	t.Run("profile requires token", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/me/profile")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/me/profile", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var profile struct {
			Username string `json:"username"`
		}
		decodeBody(t, resp, &profile)
		assert.Equal(t, "aigerim", profile.Username)
	})

	t.Run("upload two bank statements", func(t *testing.T) {
		kaspi := buildWorkbook(t, "Январь", [][]any{
			{"Дата платежа", "ФИО", "Сумма платежа", "ИИН"},
			{"10.01.2025", "Иванов Иван Иванович", "1000", "880101300123"},
			{"15.01.2025", "Петрова Анна Сергеевна", "2500", ""},
		})
		halyk := buildWorkbook(t, "Февраль", [][]any{
			{"Дата", "ИИН", "Сумма", "Отправитель (Наименование, БИК, ИИК, БИН/ИИН)"},
			{"12.02.2025", "", "3000", "ИВАНОВ ИВАН ИВАНОВИЧ ИИН: 880101300123"},
		})

		resp := uploadWorkbook(t, srv.URL, "kaspi", kaspi)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var report ingestservice.Report
		decodeBody(t, resp, &report)
		assert.Equal(t, 2, report.Total)

		resp = uploadWorkbook(t, srv.URL, "halyk", halyk)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &report)
		assert.Equal(t, 1, report.Total)
	})

	t.Run("list and filter", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/crm/")
		require.NoError(t, err)
		var all []map[string]any
		decodeBody(t, resp, &all)
		require.Len(t, all, 3)

		resp, err = http.Get(srv.URL + "/api/crm/filter?source=halyk")
		require.NoError(t, err)
		var filtered []map[string]any
		decodeBody(t, resp, &filtered)
		require.Len(t, filtered, 1)
		assert.Equal(t, "halyk", filtered[0]["источник"])

		resp, err = http.Get(srv.URL + "/api/crm/filter?amount_from=2000")
		require.NoError(t, err)
		decodeBody(t, resp, &filtered)
		assert.Len(t, filtered, 2)
	})

	t.Run("donor profile rebuilds donations from the national id", func(t *testing.T) {
		key := url.QueryEscape("Иванов Иван Иванович")
		resp, err := http.Get(srv.URL + "/api/crm/donator_profile?key=" + key)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var profile struct {
			Name      string           `json:"ФИО"`
			Class     string           `json:"тип донора"`
			Donations []map[string]any `json:"donations"`
			Stats     map[string]any   `json:"stats"`
		}
		decodeBody(t, resp, &profile)
		assert.Equal(t, "Иванов Иван Иванович", profile.Name)
		assert.Equal(t, "periodic", profile.Class)
		assert.Len(t, profile.Donations, 2)
		assert.Equal(t, "4000", fmt.Sprint(profile.Stats["total_amount"]))
	})

	t.Run("export round trip", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/crm/export?source=kaspi")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
		defer resp.Body.Close()

		f, err := excelize.OpenReader(resp.Body)
		require.NoError(t, err)
		rows, err := f.GetRows("CRM")
		require.NoError(t, err)
		require.Len(t, rows, 3)

		nameCol := -1
		for i, h := range rows[0] {
			if h == "ФИО" {
				nameCol = i
			}
		}
		require.GreaterOrEqual(t, nameCol, 0)
		names := []string{rows[1][nameCol], rows[2][nameCol]}
		assert.Contains(t, names, "Иванов Иван Иванович")
		assert.Contains(t, names, "Петрова Анна Сергеевна")
	})
}
