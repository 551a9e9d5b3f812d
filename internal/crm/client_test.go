package crm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenderlens/tenderlens/internal/crm"
	"github.com/tenderlens/tenderlens/pkg/models"
)

func TestConfirmMove_Accepted(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/pipeline/moves", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"accepted": true})
	}))
	defer srv.Close()

	client := crm.NewHTTPClient(srv.URL, "secret-key", 5*time.Second)
	id := uuid.New()
	err := client.ConfirmMove(context.Background(), id, models.StageNew, models.StageScored)

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, id.String(), gotBody["tender_id"])
	assert.Equal(t, "new", gotBody["from"])
	assert.Equal(t, "scored", gotBody["to"])
}

func TestConfirmMove_RejectedByStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := crm.NewHTTPClient(srv.URL, "", 5*time.Second)
	err := client.ConfirmMove(context.Background(), uuid.New(), models.StageNew, models.StageScored)

	assert.ErrorIs(t, err, crm.ErrCRMRejected)
}

func TestConfirmMove_RejectedByBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"accepted": false, "message": "stage locked"})
	}))
	defer srv.Close()

	client := crm.NewHTTPClient(srv.URL, "", 5*time.Second)
	err := client.ConfirmMove(context.Background(), uuid.New(), models.StageNew, models.StageScored)

	require.ErrorIs(t, err, crm.ErrCRMRejected)
	assert.Contains(t, err.Error(), "stage locked")
}

func TestConfirmMove_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := crm.NewHTTPClient(srv.URL, "", 20*time.Millisecond)
	err := client.ConfirmMove(context.Background(), uuid.New(), models.StageNew, models.StageScored)

	assert.ErrorIs(t, err, crm.ErrCRMTimeout)
}

func TestConfirmMove_Unreachable(t *testing.T) {
	client := crm.NewHTTPClient("http://127.0.0.1:1", "", time.Second)
	err := client.ConfirmMove(context.Background(), uuid.New(), models.StageNew, models.StageScored)

	assert.ErrorIs(t, err, crm.ErrCRMUnreachable)
}

func TestReady_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := crm.NewHTTPClient(srv.URL, "", time.Second)
	assert.NoError(t, client.Ready(context.Background()))
}

func TestReady_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := crm.NewHTTPClient(srv.URL, "", time.Second)
	assert.ErrorIs(t, client.Ready(context.Background()), crm.ErrCRMUnreachable)
}
