package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/logger"
	"github.com/AnshRaj112/providerhub-backend/internal/middleware"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

type testEnv struct {
	h      *Handler
	mock   sqlmock.Sqlmock
	tokens *services.TokenService
	hub    *services.LocalHub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})

	db := database.Wrap(sqlDB, time.Second)
	log := logger.Discard()
	tokens := services.NewTokenService("test-secret", time.Hour, db)
	hub := services.NewLocalHub()

	h := New(Deps{
		Auth:      services.NewAuthService(db, tokens, services.NewLogMailer(log), "http://localhost:3000", log),
		Providers: services.NewProviderService(db),
		Chats:     services.NewChatService(db, hub, log),
		Feed:      services.NewFeedService(db),
		Favorites: services.NewFavoriteService(db),
		Blacklist: services.NewBlacklistService(db),
		Reports:   services.NewReportService(db),
		Admin:     services.NewAdminService(db, log),
		Realtime:  hub,
		Tokens:    tokens,
		Log:       log,
	})
	return &testEnv{h: h, mock: mock, tokens: tokens, hub: hub}
}

// serve routes a single request through a chi router so URL params resolve.
func serve(method, pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, handler)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func as(req *http.Request, id models.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	env.h.writeError(rec, req, errors.New(`pq: relation "users" does not exist`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestDecodeRejectsBadBodies(t *testing.T) {
	env := newTestEnv(t)
	guest := models.Identity{UserID: uuid.New(), Role: models.RoleGuest}

	cases := map[string]string{
		"empty":     "",
		"malformed": "{",
		"missing":   `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := as(httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader(body)), guest)
			rec := httptest.NewRecorder()
			env.h.CreateChat(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["code"])
		})
	}

	req := as(httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader(`{}`)), guest)
	rec := httptest.NewRecorder()
	env.h.CreateChat(rec, req)
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "provider_user_id")
}

func TestPathUUIDValidation(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/providers/not-a-uuid", nil)

	rec := serve(http.MethodGet, "/providers/{id}", env.h.GetProvider, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "id")
}

func TestListProvidersEnvelope(t *testing.T) {
	env := newTestEnv(t)
	providerID := uuid.New()

	env.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM provider_profiles p WHERE").
		WithArgs("Austin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	env.mock.ExpectQuery("FROM provider_profiles p WHERE (.+) LIMIT \\$2 OFFSET \\$3").
		WithArgs("Austin", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "display_name", "state", "city", "bio", "services", "stats", "rates", "avatar", "cover"}).
			AddRow(providerID.String(), uuid.NewString(), "Rose", "TX", "Austin", "bio", "{dinner}",
				`{"real_name":"Rosalind","height_cm":170}`, `{"one_hour":150}`, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/providers?city=Austin&page=2&limit=10", nil)
	rec := httptest.NewRecorder()
	env.h.ListProviders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(10), body["limit"])
	assert.Equal(t, float64(21), body["total"])
	assert.Len(t, body["providers"], 1)
	assert.NotContains(t, rec.Body.String(), "Rosalind")
}

func TestFavoritesRejectProviders(t *testing.T) {
	env := newTestEnv(t)
	provider := models.Identity{UserID: uuid.New(), Role: models.RoleProvider}

	req := as(httptest.NewRequest(http.MethodPost, "/favorites/"+uuid.NewString(), nil), provider)
	rec := serve(http.MethodPost, "/favorites/{providerId}", env.h.AddFavorite, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminListProvidersRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := models.Identity{UserID: uuid.New(), Role: models.RoleAdmin}

	req := as(httptest.NewRequest(http.MethodGet, "/admin/providers?status=LIMBO", nil), admin)
	rec := httptest.NewRecorder()
	env.h.AdminListProviders(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "status")
}

func TestRejectProviderRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	admin := models.Identity{UserID: uuid.New(), Role: models.RoleAdmin}

	req := as(httptest.NewRequest(http.MethodPost, "/admin/providers/"+uuid.NewString()+"/reject",
		strings.NewReader(`{"reason":"no"}`)), admin)
	rec := serve(http.MethodPost, "/admin/providers/{id}/reject", env.h.RejectProvider(), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeUploader struct {
	folder string
	body   string
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, file io.Reader, folder string) (services.UploadResult, error) {
	data, _ := io.ReadAll(file)
	f.folder, f.body = folder, string(data)
	if f.err != nil {
		return services.UploadResult{}, f.err
	}
	return services.UploadResult{URL: "https://cdn/" + folder + "/x.jpg", ResourceType: "image", Bytes: len(data)}, nil
}

func multipartUpload(t *testing.T, target string, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "x.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(content))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)
	up := &fakeUploader{}
	env.h.Uploader = up

	rec := httptest.NewRecorder()
	env.h.UploadFile(rec, multipartUpload(t, "/uploads?folder=gallery", "jpegbytes"))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "providerhub/gallery", up.folder)
	assert.Equal(t, "jpegbytes", up.body)
	body := decodeBody(t, rec)
	assert.Equal(t, "https://cdn/providerhub/gallery/x.jpg", body["url"])
	assert.Equal(t, float64(9), body["bytes"])
}

func TestUploadFileErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.h.UploadFile(rec, multipartUpload(t, "/uploads", "x"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.h.Uploader = &fakeUploader{}
	rec = httptest.NewRecorder()
	env.h.UploadFile(rec, multipartUpload(t, "/uploads?folder=../etc", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.h.Uploader = &fakeUploader{err: errors.New("cloudinary down")}
	rec = httptest.NewRecorder()
	env.h.UploadFile(rec, multipartUpload(t, "/uploads", "x"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "cloudinary down")
}

func TestForgotPasswordAlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery("FROM users WHERE email = \\$1").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", strings.NewReader(`{"email":"nobody@example.com"}`))
	rec := httptest.NewRecorder()
	env.h.ForgotPassword(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func expectTokenNotRevoked(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM revoked_tokens WHERE jti = \\$1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
}

func TestSendMessageEnvelope(t *testing.T) {
	env := newTestEnv(t)
	client, provider, convID, msgID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	env.mock.ExpectBegin()
	env.mock.ExpectQuery("FROM conversations WHERE id = \\$1").WithArgs(convID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_user_id", "provider_user_id", "created_at", "last_message_at"}).
			AddRow(convID.String(), client.String(), provider.String(), now, now))
	env.mock.ExpectQuery("INSERT INTO messages").WithArgs(convID, client, "hi").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(msgID.String(), now))
	env.mock.ExpectExec("UPDATE conversations SET last_message_at").WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	req := as(httptest.NewRequest(http.MethodPost, "/chats/"+convID.String()+"/messages", strings.NewReader(`{"content":"hi"}`)),
		models.Identity{UserID: client, Role: models.RoleGuest})
	rec := serve(http.MethodPost, "/chats/{id}/messages", env.h.SendMessage, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.NotContains(t, body, "message")
	sent, ok := body["chat_message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, msgID.String(), sent["id"])
	assert.Equal(t, "hi", sent["content"])
}

func TestSocketMessageFramesAreRateLimited(t *testing.T) {
	env := newTestEnv(t)
	id := models.Identity{UserID: uuid.New(), Role: models.RoleGuest}
	env.h.MessageLimiter = middleware.NewKeyedLimiter(rate.Every(time.Hour), 1, time.Minute)
	require.True(t, env.h.MessageLimiter.Allow(id.UserID.String()))

	frame := env.h.handleFrame(context.Background(), id,
		chatClientFrame{Type: "message", ConversationID: uuid.New(), Content: "hi"},
		env.h.Log.WithField("test", t.Name()))

	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, middleware.ErrTooManyMessages.Message, frame.Error)

	pong := env.h.handleFrame(context.Background(), id, chatClientFrame{Type: "ping"}, env.h.Log.WithField("test", t.Name()))
	assert.Equal(t, "pong", pong.Type)
}

func TestChatWebSocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	env.h.ChatWebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws/chats", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatWebSocketStreamsEvents(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	token, _, err := env.tokens.Issue(userID, models.RoleGuest)
	require.NoError(t, err)
	expectTokenNotRevoked(env.mock)

	srv := httptest.NewServer(http.HandlerFunc(env.h.ChatWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong map[string]any
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	convID := uuid.New()
	require.NoError(t, env.hub.Publish(context.Background(), []uuid.UUID{userID}, services.ChatEvent{
		Type:           services.EventConversationRead,
		ConversationID: convID,
		UserID:         uuid.New(),
		Timestamp:      time.Now(),
	}))

	var evt services.ChatEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, services.EventConversationRead, evt.Type)
	assert.Equal(t, convID, evt.ConversationID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["type"])
}
