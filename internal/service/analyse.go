package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kdduha/vick-gateway/internal/config"
	"github.com/kdduha/vick-gateway/internal/extract"
	"github.com/kdduha/vick-gateway/internal/ingress"
	"github.com/kdduha/vick-gateway/internal/llm"
	"github.com/kdduha/vick-gateway/internal/metrics"
	"github.com/kdduha/vick-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// AnalysisService is the orchestrator between a parsed upload and the model.
// Its public methods never fail: every path ends in one envelope.
type AnalysisService struct {
	logger        logrus.FieldLogger
	model         llm.Model
	defaultPrompt string
	pdfDPI        float64
	modelTimeout  time.Duration
	cache         Cache
}

func NewAnalysisService(
	logger logrus.FieldLogger,
	model llm.Model,
	cfg config.AnalysisConfig,
	modelTimeout time.Duration,
) *AnalysisService {
	return &AnalysisService{
		logger:        logger,
		model:         model,
		defaultPrompt: cfg.DefaultPrompt,
		pdfDPI:        cfg.PDFDPI,
		modelTimeout:  modelTimeout,
	}
}

func (s *AnalysisService) SetCacheClient(cache Cache) {
	s.cache = cache
}

// report is what a request leaves behind for logs and metrics.
type report struct {
	outcome    Outcome
	extraction extract.Kind
	cached     bool
	err        error
}

func (s *AnalysisService) Analyse(ctx context.Context, req *models.AnalysisRequest) (env models.AnalysisEnvelope) {
	start := time.Now()
	source := sourceOf(req)

	var rep report
	defer func() {
		if rec := recover(); rec != nil {
			env = models.NewPartialEnvelope(source, msgInternal)
			rep = report{outcome: OutcomePanic, err: fmt.Errorf("panic: %v", rec)}
		}
		s.finish(req, env, rep, time.Since(start))
	}()

	env, rep = s.analyse(ctx, req)
	return env
}

// RejectIngress builds the envelope for a body the parser could not decode.
func (s *AnalysisService) RejectIngress(source string, err error) models.AnalysisEnvelope {
	message := "image transfer failed"
	if ierr, ok := ingress.AsError(err); ok {
		message = ierr.Message()
	}

	env := models.NewPartialEnvelope(source, message)
	s.finish(nil, env, report{outcome: OutcomeIngressError, err: err}, 0)
	return env
}

func (s *AnalysisService) analyse(ctx context.Context, req *models.AnalysisRequest) (models.AnalysisEnvelope, report) {
	source := sourceOf(req)

	in, err := s.prepare(req)
	if err != nil {
		return s.fail(source, err)
	}

	key := s.cacheKey(in)
	if text, found := s.cached(ctx, key); found {
		return s.succeed(source, text, true)
	}

	callCtx, cancel := s.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.model.Generate(callCtx, in)
	err = classify(callCtx, err)
	s.observeModel(start, text, err)
	if err != nil {
		return s.fail(source, err)
	}

	s.store(ctx, key, text)
	return s.succeed(source, text, false)
}

// prepare runs validation, the credential check and input construction.
// Nothing here calls the model.
func (s *AnalysisService) prepare(req *models.AnalysisRequest) (llm.Input, error) {
	if req == nil || len(req.ImageBytes) == 0 {
		return llm.Input{}, validationError(msgNoImage)
	}
	metrics.IngressBytes(req.Source, len(req.ImageBytes))

	if err := s.model.Ready(); err != nil {
		return llm.Input{}, configurationError(err)
	}

	in, err := s.buildInput(req)
	if err != nil {
		return llm.Input{}, &Error{Kind: KindUpstream, Message: msgPreprocess, Cause: err}
	}
	return in, nil
}

func (s *AnalysisService) fail(source string, err error) (models.AnalysisEnvelope, report) {
	message := msgUpstreamFailed
	var e *Error
	if errors.As(err, &e) {
		message = e.Message
	}
	return models.NewPartialEnvelope(source, message), report{outcome: outcomeOf(err), err: err}
}

func (s *AnalysisService) succeed(source, text string, cached bool) (models.AnalysisEnvelope, report) {
	if strings.TrimSpace(text) == "" {
		return s.fail(source, upstreamError(errEmptyResult))
	}

	res := extract.Structured(text)
	return models.NewOKEnvelope(source, res.Payload()), report{
		outcome:    OutcomeOK,
		extraction: res.Kind,
		cached:     cached,
	}
}

func (s *AnalysisService) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.modelTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.modelTimeout)
}

// classify maps a model error onto the service taxonomy.
func classify(callCtx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, llm.ErrNotConfigured):
		return configurationError(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return timeoutError(err)
	default:
		return upstreamError(err)
	}
}

func (s *AnalysisService) observeModel(start time.Time, text string, err error) {
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = outcomeOf(err)
	case strings.TrimSpace(text) == "":
		outcome = OutcomeEmptyResult
	}
	metrics.ModelDuration(s.model.Name(), string(outcome), time.Since(start))
}

func (s *AnalysisService) cached(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	text, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("cache get error")
		return "", false
	}
	return text, found
}

func (s *AnalysisService) store(ctx context.Context, key, text string) {
	if s.cache == nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := s.cache.Set(context.WithoutCancel(ctx), key, text); err != nil {
		s.logger.WithError(err).Warn("failed to set cache")
	}
}

// cacheKey fingerprints everything the model sees.
func (s *AnalysisService) cacheKey(in llm.Input) string {
	h := sha256.New()
	for _, part := range [][]byte{
		[]byte(s.model.Name()),
		[]byte(in.MIMEType),
		[]byte(in.PromptText),
		in.ImageBytes,
	} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *AnalysisService) finish(req *models.AnalysisRequest, env models.AnalysisEnvelope, rep report, elapsed time.Duration) {
	fields := logrus.Fields{
		"source":      env.Source,
		"status":      env.Status,
		"outcome":     rep.outcome,
		"provider":    s.model.Name(),
		"duration_ms": elapsed.Milliseconds(),
	}
	if req != nil {
		fields["mime"] = req.MIMEType
		fields["bytes"] = len(req.ImageBytes)
	}
	if rep.extraction != "" {
		fields["extraction"] = rep.extraction
	}
	if rep.cached {
		fields["cached"] = true
	}
	if ierr, ok := ingress.AsError(rep.err); ok {
		fields["ingress_kind"] = ierr.Kind
	}

	entry := s.logger.WithFields(fields)
	switch rep.outcome {
	case OutcomeOK:
		entry.Info("analysis finished")
	case OutcomeRejected, OutcomeIngressError:
		entry.WithError(rep.err).Warn("analysis rejected")
	default:
		entry.WithError(rep.err).Error("analysis failed")
	}

	metrics.AnalysisTotal(env.Source, string(env.Status), string(rep.outcome))
}

func sourceOf(req *models.AnalysisRequest) string {
	if req == nil || req.Source == "" {
		return models.SourceImageUpload
	}
	return req.Source
}
