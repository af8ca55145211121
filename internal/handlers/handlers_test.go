package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplweb/dkp/internal/models"
	"github.com/iplweb/dkp/internal/presence"
	"github.com/iplweb/dkp/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Seed(ctx))

	return NewHandler(db, presence.NewLocalStore()), db
}

func doRequest(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h.Health, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "pass", resp.Checks["database"].Status)
	assert.Equal(t, "pass", resp.Checks["presence"].Status)
}

func TestHealthDegraded(t *testing.T) {
	h, db := newTestHandler(t)
	db.Close()

	rec := doRequest(h.Health, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "fail", resp.Checks["database"].Status)
}

func TestListWards(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h.ListWards, "/api/wards")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[WardListResponse](t, rec)
	require.Len(t, resp.Wards, 4)
	assert.Equal(t, "Ward A", resp.Wards[0].Name)
}

func TestListOperatingRooms(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h.ListOperatingRooms, "/api/operating-rooms")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[OperatingRoomListResponse](t, rec)
	require.Len(t, resp.OperatingRooms, 4)
}

func TestListMessageTypes(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h.ListMessageTypes, "/api/message-types")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MessageTypeListResponse](t, rec)
	assert.Len(t, resp.MessageTypes, 3)

	rec = doRequest(h.ListMessageTypes, "/api/message-types?role=Anesthetist")
	resp = decode[MessageTypeListResponse](t, rec)
	require.Len(t, resp.MessageTypes, 2)
	for _, mt := range resp.MessageTypes {
		assert.Equal(t, models.RoleAnesthetist, mt.SourceRole)
	}

	rec = doRequest(h.ListMessageTypes, "/api/message-types?role=Janitor")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMessages(t *testing.T) {
	h, db := newTestHandler(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := db.CreateMessage(ctx, &models.Message{
			SenderRole:      models.RoleSurgeon,
			RecipientRole:   models.RoleNurse,
			MessageType:     "SURGERY_DONE",
			Content:         "SURGERY_DONE",
			OperatingRoomID: 1,
			WardID:          1,
		})
		require.NoError(t, err)
	}

	rec := doRequest(h.ListMessages, "/api/messages?ward_id=1")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MessageListResponse](t, rec)
	assert.Len(t, resp.Messages, 3)

	rec = doRequest(h.ListMessages, "/api/messages?ward_id=1&limit=2")
	resp = decode[MessageListResponse](t, rec)
	assert.Len(t, resp.Messages, 2)

	// Another ward has no history.
	rec = doRequest(h.ListMessages, "/api/messages?ward_id=2")
	resp = decode[MessageListResponse](t, rec)
	assert.Empty(t, resp.Messages)

	rec = doRequest(h.ListMessages, "/api/messages")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
