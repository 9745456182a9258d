package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kdduha/vick-gateway/internal/config"
	"github.com/kdduha/vick-gateway/internal/ingress"
	"github.com/kdduha/vick-gateway/internal/llm"
	"github.com/kdduha/vick-gateway/internal/models"
	"github.com/kdduha/vick-gateway/internal/service"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	text  string
	err   error
	calls atomic.Int32
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Ready() error { return nil }

func (m *fakeModel) Generate(ctx context.Context, in llm.Input) (string, error) {
	m.calls.Add(1)
	return m.text, m.err
}

func (m *fakeModel) Stream(ctx context.Context, in llm.Input, onDelta func(string) error) (string, error) {
	m.calls.Add(1)
	half := len(m.text) / 2
	for _, d := range []string{m.text[:half], m.text[half:]} {
		if err := onDelta(d); err != nil {
			return "", err
		}
	}
	return m.text, m.err
}

func newTestRouter(t *testing.T, model llm.Model, maxBody int64) http.Handler {
	t.Helper()

	logger, _ := test.NewNullLogger()
	svc := service.NewAnalysisService(logger, model, config.AnalysisConfig{
		DefaultPrompt: "analyse",
		PDFDPI:        72,
	}, time.Second)

	h := NewAnalyseHandler(svc, ingress.NewParser(maxBody), logger)
	return NewRouter(h, logger, RouterOptions{
		AllowedOrigin:          "https://vick.example",
		ThrottleLimit:          10,
		ThrottleBacklogTimeout: time.Second,
		Timeout:                5 * time.Second,
		Compress:               true,
	})
}

type envelope struct {
	Status      string `json:"status"`
	Analyse     any    `json:"analyse"`
	Source      string `json:"source"`
	Message     string `json:"message"`
	Predictions []any  `json:"predictions"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env envelope
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func multipartRequest(t *testing.T, path string, image []byte, prompt string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", "shot.png")
	require.NoError(t, err)
	_, err = fw.Write(image)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("prompt", prompt))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestAnalyseMultipart(t *testing.T) {
	model := &fakeModel{text: "```json\n{\"predictions\":[{\"time\":\"12:01\"}]}\n```"}
	router := newTestRouter(t, model, 1<<20)

	for _, path := range []string{"/api/analyse", "/analyse"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, path, []byte("0123456789"), "test"))

		env := decodeEnvelope(t, rec)
		assert.Equal(t, "ok", env.Status)
		assert.Equal(t, "image_upload", env.Source)
		assert.Nil(t, env.Predictions)
		assert.Equal(t, map[string]any{"predictions": []any{map[string]any{"time": "12:01"}}}, env.Analyse)
	}
	assert.EqualValues(t, 2, model.calls.Load())
}

func TestAnalyseJSON(t *testing.T) {
	router := newTestRouter(t, &fakeModel{text: "plain answer"}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/analyse",
		strings.NewReader(`{"base64":"data:image/png;base64,AAAA","prompt":"scan"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "ok", env.Status)
	assert.Equal(t, "base64_upload", env.Source)
	assert.Equal(t, "plain answer", env.Analyse)
}

func TestAnalyseDegradesToPartial(t *testing.T) {
	model := &fakeModel{text: "unused"}
	router := newTestRouter(t, model, 256)

	tests := []struct {
		name    string
		method  string
		path    string
		ct      string
		body    string
		message string
	}{
		{name: "wrong method", method: http.MethodGet, path: "/api/analyse", message: "method GET is not allowed, use POST"},
		{name: "unknown path", method: http.MethodPost, path: "/api/analyser", ct: "application/json", message: "unknown endpoint"},
		{name: "invalid json", method: http.MethodPost, path: "/api/analyse", ct: "application/json", body: `{"base64":`, message: "image transfer failed"},
		{name: "empty body", method: http.MethodPost, path: "/api/analyse", ct: "application/json", message: "no image received"},
		{name: "too large", method: http.MethodPost, path: "/api/analyse", ct: "application/json",
			body: `{"base64":"` + strings.Repeat("A", 1024) + `"}`, message: "image is too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			env := decodeEnvelope(t, rec)
			assert.Equal(t, "partial", env.Status)
			assert.Equal(t, tt.message, env.Message)
			assert.Equal(t, map[string]any{"message": tt.message, "predictions": []any{}}, env.Analyse)
			assert.Equal(t, []any{}, env.Predictions)
		})
	}
	assert.Zero(t, model.calls.Load())
}

func TestAnalyseStream(t *testing.T) {
	router := newTestRouter(t, &fakeModel{text: `{"results":[1]}`}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/analyse/stream", []byte("img"), "p"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: message\n"))
	assert.Contains(t, body, `data: {"delta":"{\"resul"}`)
	assert.Equal(t, 1, strings.Count(body, "event: done\n"))
	assert.Contains(t, body, `data: {"status":"ok","analyse":{"results":[1]},"source":"image_upload"}`)
}

func TestAnalyseStreamIngressError(t *testing.T) {
	router := newTestRouter(t, &fakeModel{text: "x"}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/analyse/stream", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.NotContains(t, body, "event: message")
	assert.Contains(t, body, "event: done\n")
	assert.Contains(t, body, `"status":"partial"`)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeModel{}, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyseGzip(t *testing.T) {
	router := newTestRouter(t, &fakeModel{text: `{"predictions":[]}`}, 1<<20)

	req := multipartRequest(t, "/api/analyse", []byte("img"), "p")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","analyse":{"predictions":[]},"source":"image_upload"}`, string(data))
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, &fakeModel{}, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyse", nil)
	req.Header.Set("Origin", "https://vick.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://vick.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

type panickingService struct{}

func (panickingService) Analyse(context.Context, *models.AnalysisRequest) models.AnalysisEnvelope {
	panic("analyse exploded")
}

func (panickingService) AnalyseStream(context.Context, *models.AnalysisRequest) <-chan service.StreamEvent {
	panic("stream exploded")
}

func (panickingService) RejectIngress(source string, err error) models.AnalysisEnvelope {
	return models.NewPartialEnvelope(source, err.Error())
}

func TestAnalysePanicUnderGzip(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewAnalyseHandler(panickingService{}, ingress.NewParser(1<<20), logger)
	router := NewRouter(h, logger, RouterOptions{AllowedOrigin: "*", Compress: true})

	req := multipartRequest(t, "/api/analyse", []byte("img"), "p")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"status":"partial","analyse":{"message":"internal error","predictions":[]},"source":"image_upload","message":"internal error","predictions":[]}`,
		string(data))
}
