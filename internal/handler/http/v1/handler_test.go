package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/auth"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/service"
	"github.com/shenikar/sos_dispatch_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestHandler создает новый экземпляр Handler с мокированными сервисами
func newTestHandler(t *testing.T) (*mocks.MockIncidentService, *mocks.MockAuthService, *auth.TokenManager, *gin.Engine) {
	ctrl := gomock.NewController(t)
	incidentMock := mocks.NewMockIncidentService(ctrl)
	authMock := mocks.NewMockAuthService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	handler := NewHandler(incidentMock, authMock, tokens, logger)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return incidentMock, authMock, tokens, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, tokens *auth.TokenManager, role models.Role) (uuid.UUID, map[string]string) {
	t.Helper()
	userID := uuid.New()
	token, err := tokens.Issue(userID, role)
	require.NoError(t, err)
	return userID, map[string]string{"Authorization": "Bearer " + token}
}

func TestCreateSOS_Success(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	userID, headers := bearer(t, tokens, models.RoleCivilian)
	reqBody, err := json.Marshal(CreateSOSRequest{Latitude: 55.75, Longitude: 37.61})
	require.NoError(t, err)

	// Ожидания
	incidentMock.EXPECT().
		CreateIncident(gomock.Any(), userID, 55.75, 37.61).
		Return(&models.Incident{
			ID:          uuid.New(),
			DispatchID:  "SOS-test",
			Status:      models.StatusPending,
			OwnerUserID: userID,
		}, nil).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/sos", bytes.NewReader(reqBody), headers)

	// Проверки: подтверждение с dispatch_id, статус pending
	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateSOSResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SOS-test", resp.DispatchID)
	assert.Equal(t, "pending", resp.Status)
}

func TestCreateSOS_InvalidCoordinates(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleCivilian)
	reqBody, err := json.Marshal(CreateSOSRequest{Latitude: 91.0, Longitude: 37.61})
	require.NoError(t, err)

	// Ожидания
	incidentMock.EXPECT().CreateIncident(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/sos", bytes.NewReader(reqBody), headers)

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSOS_NoToken(t *testing.T) {
	// Подготовка
	incidentMock, _, _, router := newTestHandler(t)
	reqBody, err := json.Marshal(CreateSOSRequest{Latitude: 55.75, Longitude: 37.61})
	require.NoError(t, err)

	// Ожидания
	incidentMock.EXPECT().CreateIncident(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/sos", bytes.NewReader(reqBody))

	// Проверки
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListSOS_ForbiddenForCivilian(t *testing.T) {
	// Подготовка: листинг всех вызовов - только responder/admin
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleCivilian)

	// Ожидания
	incidentMock.EXPECT().ListAll(gomock.Any()).Times(0) // Сервис не должен вызываться

	// Действие
	w := makeRequest(router, http.MethodGet, "/api/v1/sos", nil, headers)

	// Проверки
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListSOS_ResponderAllowed(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleResponder)

	// Ожидания
	incidentMock.EXPECT().
		ListAll(gomock.Any()).
		Return([]*models.Incident{{DispatchID: "SOS-test", Status: models.StatusPending}}, nil).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodGet, "/api/v1/sos", nil, headers)

	// Проверки: статус отдается вместе с презентационными метаданными
	require.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Pending", resp[0].StatusLabel)
	assert.Equal(t, "#ef4444", resp[0].StatusColor)
}

func TestMySOS_Success(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	userID, headers := bearer(t, tokens, models.RoleCivilian)

	// Ожидания
	incidentMock.EXPECT().
		ListMine(gomock.Any(), userID).
		Return([]*models.Incident{}, nil).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodGet, "/api/v1/sos/my", nil, headers)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNearbySOS_MissingParams(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleResponder)

	// Ожидания
	incidentMock.EXPECT().FindNearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	// Действие
	w := makeRequest(router, http.MethodGet, "/api/v1/sos/nearby?lat=55.75", nil, headers)

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNearbySOS_Success(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleResponder)

	// Ожидания
	incidentMock.EXPECT().
		FindNearby(gomock.Any(), 55.75, 37.61, 5000).
		Return([]*models.Incident{}, nil).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodGet, "/api/v1/sos/nearby?lat=55.75&lng=37.61&radius=5000", nil, headers)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateStatus_Success(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleResponder)
	incidentID := uuid.New()
	reqBody, err := json.Marshal(UpdateStatusRequest{Status: "dispatched"})
	require.NoError(t, err)

	// Ожидания
	incidentMock.EXPECT().
		UpdateStatus(gomock.Any(), incidentID, models.StatusDispatched).
		Return(&models.Incident{ID: incidentID, DispatchID: "SOS-test", Status: models.StatusDispatched}, nil).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodPut, "/api/v1/sos/"+incidentID.String()+"/status", bytes.NewReader(reqBody), headers)

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dispatched", resp.Status)
}

func TestUpdateStatus_UnknownStatusValue(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleAdmin)
	reqBody := []byte(`{"status":"escalated"}`)

	// Ожидания
	incidentMock.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	// Действие
	w := makeRequest(router, http.MethodPut, "/api/v1/sos/"+uuid.NewString()+"/status", bytes.NewReader(reqBody), headers)

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleResponder)
	incidentID := uuid.New()
	reqBody, err := json.Marshal(UpdateStatusRequest{Status: "resolved"})
	require.NoError(t, err)

	// Ожидания
	incidentMock.EXPECT().
		UpdateStatus(gomock.Any(), incidentID, models.StatusResolved).
		Return(nil, service.ErrNotFound).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodPut, "/api/v1/sos/"+incidentID.String()+"/status", bytes.NewReader(reqBody), headers)

	// Проверки
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadAudio_Success(t *testing.T) {
	// Подготовка: multipart форма с полем audio
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleCivilian)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "sos-audio.webm")
	require.NoError(t, err)
	_, err = part.Write([]byte("audio-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	headers["Content-Type"] = mw.FormDataContentType()

	audioURL := "/audio/SOS-test.webm"

	// Ожидания
	incidentMock.EXPECT().
		AttachAudio(gomock.Any(), "SOS-test", ".webm", gomock.Any()).
		Return(&models.Incident{DispatchID: "SOS-test", AudioURL: &audioURL}, nil).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/sos/SOS-test/audio", &buf, headers)

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp UploadAudioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, audioURL, resp.AudioURL)
}

func TestUploadAudio_NoFile(t *testing.T) {
	// Подготовка
	incidentMock, _, tokens, router := newTestHandler(t)
	_, headers := bearer(t, tokens, models.RoleCivilian)

	// Ожидания
	incidentMock.EXPECT().AttachAudio(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/sos/SOS-test/audio", bytes.NewReader([]byte("not-a-form")), headers)

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_Success(t *testing.T) {
	// Подготовка
	_, authMock, _, router := newTestHandler(t)
	reqBody, err := json.Marshal(RegisterRequest{
		Name:     "Анна",
		Email:    "anna@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)
	userID := uuid.New()

	// Ожидания
	authMock.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		Return(&models.User{ID: userID, Name: "Анна", Email: "anna@example.com", Role: models.RoleCivilian}, "signed-token", nil).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/auth/register", bytes.NewReader(reqBody))

	// Проверки: токен и публичные поля без хэша пароля
	require.Equal(t, http.StatusCreated, w.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "signed-token", resp.Token)
	assert.Equal(t, userID, resp.User.ID)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_EmailTaken(t *testing.T) {
	// Подготовка
	_, authMock, _, router := newTestHandler(t)
	reqBody, err := json.Marshal(RegisterRequest{
		Name:     "Анна",
		Email:    "anna@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)

	// Ожидания
	authMock.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		Return(nil, "", service.ErrEmailTaken).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/auth/register", bytes.NewReader(reqBody))

	// Проверки
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	// Подготовка
	_, authMock, _, router := newTestHandler(t)
	reqBody, err := json.Marshal(LoginRequest{Email: "anna@example.com", Password: "wrong-pass"})
	require.NoError(t, err)

	// Ожидания
	authMock.EXPECT().
		Login(gomock.Any(), "anna@example.com", "wrong-pass").
		Return(nil, "", service.ErrInvalidCredentials).
		Times(1)

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/auth/login", bytes.NewReader(reqBody))

	// Проверки
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthCheck(t *testing.T) {
	// Подготовка
	_, _, _, router := newTestHandler(t)

	// Действие
	w := makeRequest(router, http.MethodGet, "/api/v1/system/health", nil)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
