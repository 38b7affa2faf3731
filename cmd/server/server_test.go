package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/mocks"
	"github.com/phrazzld/arcana/internal/platform/postgres"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplication(svc *mocks.MockAccountService) *application {
	return &application{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		accountService: svc,
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestApplication(&mocks.MockAccountService{}).setupRouter()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestRouterMountsAccountRoutes(t *testing.T) {
	id := uuid.New()
	svc := &mocks.MockAccountService{
		GetUserFn: func(_ context.Context, userID uuid.UUID) (*domain.User, error) {
			return &domain.User{ID: userID, Username: "seeker"}, nil
		},
		ProductsFn: func() []domain.Product {
			return []domain.Product{{ID: "premium-cards", Price: 99}}
		},
	}
	h := newTestApplication(svc).setupRouter()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
	assert.NotEmpty(t, w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "premium-cards")
	assert.Equal(t, []string{"GetUser", "Products"}, svc.Calls())
}

func TestRouterRecoversFromPanics(t *testing.T) {
	svc := &mocks.MockAccountService{
		ProductsFn: func() []domain.Product { panic("catalog exploded") },
	}
	h := newTestApplication(svc).setupRouter()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPrintMigrationStatus(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	applied := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	printMigrationStatus(cmd, []postgres.MigrationStatus{
		{Version: 1, Path: "00001_create_accounts.sql", Applied: true, AppliedAt: applied},
		{Version: 2, Path: "00002_create_ledger.sql"},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2026-03-01T12:00:00Z")
	assert.Contains(t, lines[2], "pending")
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])

	migrate, _, err := root.Find([]string{"migrate", "status"})
	require.NoError(t, err)
	assert.Equal(t, "status", migrate.Name())
}
