package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/kdduha/vick-gateway/internal/ingress"
	"github.com/kdduha/vick-gateway/internal/models"
	"github.com/kdduha/vick-gateway/internal/service"
	"github.com/sirupsen/logrus"
)

type analysisService interface {
	Analyse(ctx context.Context, req *models.AnalysisRequest) models.AnalysisEnvelope
	AnalyseStream(ctx context.Context, req *models.AnalysisRequest) <-chan service.StreamEvent
	RejectIngress(source string, err error) models.AnalysisEnvelope
}

type AnalyseHandler struct {
	service analysisService
	parser  *ingress.Parser
	logger  logrus.FieldLogger
}

func NewAnalyseHandler(service analysisService, parser *ingress.Parser, logger logrus.FieldLogger) *AnalyseHandler {
	return &AnalyseHandler{
		service: service,
		parser:  parser,
		logger:  logger,
	}
}

// Analyse godoc
// @Summary Analyse an image with a prompt
// @Description Accepts multipart/form-data (file part "image", text part "prompt") or JSON with a base64 image.
// @Description Always answers 200 with an envelope; status "partial" carries the failure message.
// @Tags analyse
// @Accept multipart/form-data,json
// @Produce json
// @Param image formData file false "Image to analyse"
// @Param prompt formData string false "Prompt text"
// @Param request body models.AnalyseJSONRequest false "JSON variant"
// @Success 200 {object} models.AnalysisEnvelope
// @Router /api/analyse [post]
func (h *AnalyseHandler) Analyse(w http.ResponseWriter, r *http.Request) {
	req, err := h.parser.ParseRequest(w, r)
	if err != nil {
		writeEnvelope(w, h.service.RejectIngress(ingress.SourceFor(r.Header.Get("Content-Type")), err))
		return
	}

	writeEnvelope(w, h.service.Analyse(r.Context(), req))
}

// AnalyseStream godoc
// @Summary Stream an analysis
// @Description Same input as /api/analyse. Emits "message" events with {"delta"} chunks,
// @Description then one "done" event whose data is the final envelope.
// @Tags analyse
// @Accept multipart/form-data,json
// @Produce text/event-stream
// @Param image formData file false "Image to analyse"
// @Param prompt formData string false "Prompt text"
// @Success 200 {object} models.StreamChunk "Stream of deltas (SSE)"
// @Router /api/analyse/stream [post]
func (h *AnalyseHandler) AnalyseStream(w http.ResponseWriter, r *http.Request) {
	req, parseErr := h.parser.ParseRequest(w, r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher := http.NewResponseController(w)

	if parseErr != nil {
		env := h.service.RejectIngress(ingress.SourceFor(r.Header.Get("Content-Type")), parseErr)
		h.writeEvent(w, "done", env)
		_ = flusher.Flush()
		return
	}

	for ev := range h.service.AnalyseStream(r.Context(), req) {
		if ev.Envelope != nil {
			h.writeEvent(w, "done", *ev.Envelope)
		} else {
			h.writeEvent(w, "message", models.StreamChunk{Delta: ev.Delta})
		}
		if err := flusher.Flush(); err != nil {
			h.logger.WithError(err).Debug("stream flush failed")
		}
	}
}

func (h *AnalyseHandler) writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode stream event")
		data = fallbackEnvelope
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/health [get]
func (h *AnalyseHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// MethodNotAllowed answers with an envelope instead of a bare 405.
func (h *AnalyseHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, models.NewPartialEnvelope(ingress.SourceFor(r.Header.Get("Content-Type")),
		fmt.Sprintf("method %s is not allowed, use POST", r.Method)))
}

func (h *AnalyseHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, models.NewPartialEnvelope(ingress.SourceFor(r.Header.Get("Content-Type")),
		"unknown endpoint"))
}
