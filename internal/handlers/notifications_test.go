package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/savorahq/savora/internal/database/testutil"
	"github.com/savorahq/savora/internal/middleware"
	"github.com/savorahq/savora/internal/models"
	"github.com/savorahq/savora/internal/services"
	"github.com/savorahq/savora/pkg/response"
)

func newNotificationTestHandler(t *testing.T) *NotificationHandler {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewNotificationHandler(db, nil, nil)
	require.NoError(t, err)
	return handler
}

func seedNotification(t *testing.T, handler *NotificationHandler, userID, title string) services.NotificationDTO {
	t.Helper()

	dto, err := handler.service.Create(context.Background(), services.CreateNotificationInput{
		UserID: userID,
		Type:   models.NotificationOrderPlaced,
		Title:  title,
	})
	require.NoError(t, err)
	return *dto
}

func TestNotificationHandlerListAndMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := newNotificationTestHandler(t)
	seedNotification(t, handler, "user-1", "Order placed")
	target := seedNotification(t, handler, "user-1", "Order ready")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	c.Set(middleware.CtxUserIDKey, "user-1")
	handler.List(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.NotNil(t, payload.Meta)
	require.False(t, payload.Meta.HasMore)

	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)

	var items []services.NotificationDTO
	require.NoError(t, json.Unmarshal(dataBytes, &items))
	require.Len(t, items, 2)

	readRecorder := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(readRecorder)
	body := strings.NewReader(`{"ids":["` + target.ID + `"]}`)
	c2.Request = httptest.NewRequest(http.MethodPost, "/api/notifications/mark-read", body)
	c2.Request.Header.Set("Content-Type", "application/json")
	c2.Set(middleware.CtxUserIDKey, "user-1")
	handler.MarkRead(c2)

	require.Equal(t, http.StatusOK, readRecorder.Code)
	require.Contains(t, readRecorder.Body.String(), `"updated":1`)

	countRecorder := httptest.NewRecorder()
	c3, _ := gin.CreateTestContext(countRecorder)
	c3.Request = httptest.NewRequest(http.MethodGet, "/api/notifications/unread-count", nil)
	c3.Set(middleware.CtxUserIDKey, "user-1")
	handler.UnreadCount(c3)

	require.Equal(t, http.StatusOK, countRecorder.Code)
	require.Contains(t, countRecorder.Body.String(), `"unread_count":1`)
}

func TestNotificationHandlerDeleteUnknownIsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := newNotificationTestHandler(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodDelete, "/api/notifications/missing", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: "missing"}}
	c.Set(middleware.CtxUserIDKey, "user-1")
	handler.Delete(c)

	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestNotificationHandlerRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := newNotificationTestHandler(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	handler.List(c)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestNotificationHandlerMarkReadRejectsEmptyBatch(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := newNotificationTestHandler(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/notifications/mark-read", strings.NewReader(`{"ids":[]}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserIDKey, "user-1")
	handler.MarkRead(c)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
