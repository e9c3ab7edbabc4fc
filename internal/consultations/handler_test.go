package consultations

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"skincare-backend/internal/vision"
)

func newHandlerRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func multipartPhoto(t *testing.T, photo []byte, contentType, message string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if photo != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="photo"; filename="face.jpg"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	if message != "" {
		require.NoError(t, w.WriteField("message", message))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestCreateConsultationAccepted(t *testing.T) {
	svc, _ := newTestService(t, &scriptedAnalyzer{steps: []analyzeStep{{profile: oilyProfile()}}}, stubRecommender{})
	q := &fakeQueue{}
	svc.Queue = q
	r := newHandlerRouter(svc)

	body, ct := multipartPhoto(t, jpegBytes, "image/jpeg", "dry patches on my cheeks")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		ID     string `json:"id"`
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Equal(t, StatusPending, resp.Status)
	require.Len(t, q.sent, 1)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/consultations/"+resp.ID, nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)
	require.Equal(t, http.StatusOK, getW.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &got))
	require.Equal(t, "pending", got["status"])
	require.Equal(t, "dry patches on my cheeks", got["message"])
	require.Nil(t, got["analysis"])
}

func TestCreateConsultationRequiresPhoto(t *testing.T) {
	svc, _ := newTestService(t, &scriptedAnalyzer{steps: []analyzeStep{{profile: oilyProfile()}}}, stubRecommender{})
	r := newHandlerRouter(svc)

	body, ct := multipartPhoto(t, nil, "", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "validation_error", env.Error.Code)
}

func TestCreateConsultationRejectsUnsupportedImage(t *testing.T) {
	svc, _ := newTestService(t, &scriptedAnalyzer{steps: []analyzeStep{{profile: oilyProfile()}}}, stubRecommender{})
	r := newHandlerRouter(svc)

	body, ct := multipartPhoto(t, []byte("GIF89a-not-really"), "image/gif", "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "invalid_image", env.Error.Code)
	require.Contains(t, env.Error.Message, "unsupported image format")
}

func TestGetConsultationNotFound(t *testing.T) {
	svc, _ := newTestService(t, &scriptedAnalyzer{steps: []analyzeStep{{profile: oilyProfile()}}}, stubRecommender{})
	r := newHandlerRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consultations/does-not-exist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeEndpointReturnsRecommendations(t *testing.T) {
	svc, _ := newTestService(t, &scriptedAnalyzer{steps: []analyzeStep{{profile: oilyProfile()}}}, stubRecommender{})
	r := newHandlerRouter(svc)

	body, ct := multipartPhoto(t, jpegBytes, "image/jpeg", "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations/analyze", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "completed", resp["status"])
	require.NotEmpty(t, resp["consultation_id"])
	require.NotNil(t, resp["analysis"])
	require.NotNil(t, resp["recommendations"])
}

func TestAnalyzeEndpointReportsBadGatewayOnFailure(t *testing.T) {
	schemaErr := &vision.SchemaError{Fields: []string{"notes"}, Reason: "missing required fields"}
	svc, _ := newTestService(t, &scriptedAnalyzer{steps: []analyzeStep{{err: schemaErr}}}, stubRecommender{})
	r := newHandlerRouter(svc)

	body, ct := multipartPhoto(t, jpegBytes, "image/jpeg", "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations/analyze", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "analysis_failed", env.Error.Code)
	require.Contains(t, env.Error.Message, "Vision analysis failed")
}
