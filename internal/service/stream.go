package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kdduha/vick-gateway/internal/models"
)

// StreamEvent carries either a text delta or, as the last event, the envelope.
type StreamEvent struct {
	Delta    string
	Envelope *models.AnalysisEnvelope
}

// AnalyseStream runs the same pipeline as Analyse but forwards model text as it
// arrives. The channel always ends with exactly one envelope event, unless ctx
// is cancelled first, and is then closed.
func (s *AnalysisService) AnalyseStream(ctx context.Context, req *models.AnalysisRequest) <-chan StreamEvent {
	ch := make(chan StreamEvent, 1)

	go func() {
		defer close(ch)

		start := time.Now()
		source := sourceOf(req)

		sendOrStop := func(ev StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			env models.AnalysisEnvelope
			rep report
		)
		defer func() {
			if rec := recover(); rec != nil {
				env = models.NewPartialEnvelope(source, msgInternal)
				rep = report{outcome: OutcomePanic, err: fmt.Errorf("panic: %v", rec)}
			}
			s.finish(req, env, rep, time.Since(start))
			sendOrStop(StreamEvent{Envelope: &env})
		}()

		env, rep = s.analyseStream(ctx, req, sendOrStop)
	}()

	return ch
}

func (s *AnalysisService) analyseStream(
	ctx context.Context,
	req *models.AnalysisRequest,
	send func(StreamEvent) bool,
) (models.AnalysisEnvelope, report) {
	source := sourceOf(req)

	in, err := s.prepare(req)
	if err != nil {
		return s.fail(source, err)
	}

	key := s.cacheKey(in)
	if text, found := s.cached(ctx, key); found {
		send(StreamEvent{Delta: text})
		return s.succeed(source, text, true)
	}

	callCtx, cancel := s.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.model.Stream(callCtx, in, func(delta string) error {
		if !send(StreamEvent{Delta: delta}) {
			return ctx.Err()
		}
		return nil
	})
	err = classify(callCtx, err)
	s.observeModel(start, text, err)
	if err != nil {
		return s.fail(source, err)
	}

	s.store(ctx, key, text)
	return s.succeed(source, text, false)
}
