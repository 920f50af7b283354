package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/storage"
	"github.com/feedwatch/metrics-alerting/testsCommon"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) (*server, RunStore) {
	store, err := storage.NewSQLiteRunStore(":memory:", 3600)
	require.NoError(t, err)

	args := ArgsWebServer{
		ListenAddress:  ":0",
		Store:          store,
		GeneralHandler: func(h http.Handler) http.Handler { return h },
	}

	serv, err := NewServer(args)
	require.NoError(t, err)

	return serv, store
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	t.Run("nil store should error", func(t *testing.T) {
		serv, err := NewServer(ArgsWebServer{
			GeneralHandler: func(h http.Handler) http.Handler { return h },
		})

		require.Nil(t, serv)
		require.ErrorContains(t, err, "store is required")
	})
	t.Run("nil general handler should error", func(t *testing.T) {
		store, err := storage.NewSQLiteRunStore(":memory:", 3600)
		require.NoError(t, err)
		defer func() {
			_ = store.Close()
		}()

		serv, err := NewServer(ArgsWebServer{Store: store})

		require.Nil(t, serv)
		require.ErrorContains(t, err, "nil http handler")
	})
}

func TestStatusEndpoint(t *testing.T) {
	serv, store := setupTestServer(t)
	defer func() {
		_ = store.Close()
	}()

	// No runs yet
	req, _ := http.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	serv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	now := time.Now().Unix()
	err := store.SaveRun(context.Background(), common.RunRecord{
		StartedAt: now,
		Evaluated: 6,
		Alerted:   2,
	})
	require.NoError(t, err)

	req, _ = http.NewRequest("GET", "/api/status", nil)
	w = httptest.NewRecorder()
	serv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		LastRun common.RunRecord `json:"lastRun"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, now, response.LastRun.StartedAt)
	require.Equal(t, 2, response.LastRun.Alerted)
}

func TestRunsEndpoint(t *testing.T) {
	serv, store := setupTestServer(t)
	defer func() {
		_ = store.Close()
	}()

	now := time.Now().Unix()
	for i := 0; i < 3; i++ {
		err := store.SaveRun(context.Background(), common.RunRecord{
			StartedAt: now - int64(i)*900,
			Evaluated: 6,
		})
		require.NoError(t, err)
	}

	// All runs, most recent first
	req, _ := http.NewRequest("GET", "/api/runs", nil)
	w := httptest.NewRecorder()
	serv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Runs []common.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Runs, 3)
	require.Equal(t, now, response.Runs[0].StartedAt)

	// Limited
	req, _ = http.NewRequest("GET", "/api/runs?limit=2", nil)
	w = httptest.NewRecorder()
	serv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	response.Runs = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Runs, 2)

	// Invalid limit
	req, _ = http.NewRequest("GET", "/api/runs?limit=abc", nil)
	w = httptest.NewRecorder()
	serv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndpointsStoreFailures(t *testing.T) {
	expectedErr := errors.New("database is locked")
	store := &testsCommon.RunStoreStub{
		LatestRunHandler: func(ctx context.Context) (*common.RunRecord, error) {
			return nil, expectedErr
		},
		RunsHandler: func(ctx context.Context, limit int) ([]common.RunRecord, error) {
			return nil, expectedErr
		},
	}

	serv, err := NewServer(ArgsWebServer{
		ListenAddress:  ":0",
		Store:          store,
		GeneralHandler: func(h http.Handler) http.Handler { return h },
	})
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	serv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	req, _ = http.NewRequest("GET", "/api/runs", nil)
	w = httptest.NewRecorder()
	serv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
