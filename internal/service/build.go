package service

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/kdduha/vick-gateway/internal/llm"
	"github.com/kdduha/vick-gateway/internal/metrics"
	"github.com/kdduha/vick-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// buildInput turns a validated request into model input: the default prompt
// is substituted and PDF uploads are rasterised.
func (s *AnalysisService) buildInput(req *models.AnalysisRequest) (llm.Input, error) {
	in := llm.Input{
		PromptText: req.PromptText,
		MIMEType:   req.MIMEType,
		ImageBytes: req.ImageBytes,
	}
	if strings.TrimSpace(in.PromptText) == "" {
		in.PromptText = s.defaultPrompt
	}
	if in.MIMEType == "" {
		in.MIMEType = models.DefaultMIMEType
	}

	if in.MIMEType != pdfMIMEType {
		return in, nil
	}

	start := time.Now()
	img, err := rasterizePDF(in.ImageBytes, s.pdfDPI)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.FilePreprocessTotal(status, in.MIMEType)
	metrics.FilePreprocessDuration(status, in.MIMEType, time.Since(start))

	if err != nil {
		return llm.Input{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"bytes_in":  len(in.ImageBytes),
		"bytes_out": len(img),
	}).Debug("pdf rasterised")

	in.ImageBytes = img
	in.MIMEType = rasterMIMEType
	return in, nil
}

// rasterizePDF renders the first page of a PDF document to JPEG in memory.
func rasterizePDF(data []byte, dpi float64) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, errors.New("pdf has no pages")
	}

	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("render pdf page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: rasterJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
