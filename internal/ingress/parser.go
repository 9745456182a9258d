// Package ingress decodes multipart and JSON uploads into models.AnalysisRequest.
// It does not check that the bytes really are an image.
package ingress

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kdduha/vick-gateway/internal/models"
)

const (
	imageField = "image"

	maxFieldBytes = 1 << 20
)

type Parser struct {
	maxBodyBytes int64
}

// NewParser returns a parser that rejects bodies above maxBodyBytes.
// A non-positive limit disables the check.
func NewParser(maxBodyBytes int64) *Parser {
	return &Parser{maxBodyBytes: maxBodyBytes}
}

// ParseRequest reads r.Body and closes it on every path.
func (p *Parser) ParseRequest(w http.ResponseWriter, r *http.Request) (*models.AnalysisRequest, error) {
	body := r.Body
	if p.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, p.maxBodyBytes)
	}
	defer body.Close()

	return p.Parse(r.Header.Get("Content-Type"), body)
}

// Parse demultiplexes body according to contentType.
func (p *Parser) Parse(contentType string, body io.Reader) (*models.AnalysisRequest, error) {
	if strings.TrimSpace(contentType) == "" {
		return parseJSON(body)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, malformed(fmt.Errorf("content type %q: %w", contentType, err))
	}

	switch mediaType {
	case "multipart/form-data":
		return parseMultipart(body, params["boundary"])
	case "application/json", "text/plain":
		return parseJSON(body)
	default:
		return nil, malformed(fmt.Errorf("unsupported content type %q", mediaType))
	}
}

// SourceFor returns the envelope source tag for a request content type.
func SourceFor(contentType string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "multipart/") {
		return models.SourceImageUpload
	}
	if strings.TrimSpace(contentType) == "" || strings.Contains(strings.ToLower(contentType), "json") {
		return models.SourceBase64Upload
	}
	return models.SourceImageUpload
}

func parseMultipart(body io.Reader, boundary string) (*models.AnalysisRequest, error) {
	if boundary == "" {
		return nil, malformed(errors.New("multipart boundary is missing"))
	}

	var (
		mr         = multipart.NewReader(body, boundary)
		image      bytes.Buffer
		imageMIME  string
		fromImage  bool
		fields     = map[string]string{}
		havePicked bool
	)

	for {
		part, err := mr.NextPart()
		// Only a bare io.EOF marks the final boundary; a wrapped EOF is a truncated body.
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		isFile := part.FileName() != "" || part.FormName() == imageField
		switch {
		case isFile && (!havePicked || (!fromImage && part.FormName() == imageField)):
			image.Reset()
			if _, err := io.Copy(&image, part); err != nil {
				_ = part.Close()
				return nil, malformed(err)
			}
			imageMIME = part.Header.Get("Content-Type")
			fromImage = part.FormName() == imageField
			havePicked = true
		case !isFile:
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				_ = part.Close()
				return nil, malformed(err)
			}
			fields[part.FormName()] = string(value)
		}
		_ = part.Close()
	}

	if image.Len() == 0 {
		return nil, emptyBody(errors.New("no file part in multipart body"))
	}

	return &models.AnalysisRequest{
		ImageBytes: image.Bytes(),
		MIMEType:   NormalizeMIME(fields["mimeType"], imageMIME),
		PromptText: firstNonEmpty(fields["prompt"], fields["promptText"]),
		Source:     models.SourceImageUpload,
	}, nil
}

func parseJSON(body io.Reader) (*models.AnalysisRequest, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, malformed(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, emptyBody(errors.New("request body is empty"))
	}

	var req models.AnalyseJSONRequest
	if err := sonic.ConfigDefault.Unmarshal(raw, &req); err != nil {
		return nil, malformed(fmt.Errorf("invalid JSON: %w", err))
	}

	encoded := firstNonEmpty(req.Base64, req.Image)
	if encoded == "" {
		return nil, emptyBody(errors.New("base64 image field is empty"))
	}

	data, hintMIME, err := DecodeBase64(encoded)
	if err != nil {
		return nil, malformed(fmt.Errorf("bad base64: %w", err))
	}
	if len(data) == 0 {
		return nil, emptyBody(errors.New("decoded image is empty"))
	}

	return &models.AnalysisRequest{
		ImageBytes: data,
		MIMEType:   NormalizeMIME(req.MIMEType, hintMIME),
		PromptText: firstNonEmpty(req.Prompt, req.PromptText),
		Source:     models.SourceBase64Upload,
	}, nil
}

// DecodeBase64 decodes s, stripping a data:<mime>;base64, header (whose mime is
// returned) or any leading text up to "base64,".
func DecodeBase64(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)

	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	} else if idx := strings.Index(s, "base64,"); idx >= 0 {
		s = s[idx+len("base64,"):]
	}
	s = strings.TrimSpace(s)

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, hintMIME, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", firstErr
}

// NormalizeMIME picks the explicit type, then the hint, and falls back to
// image/jpeg when neither is an image or PDF type.
func NormalizeMIME(explicit, hint string) string {
	for _, candidate := range []string{explicit, hint} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		mediaType, _, err := mime.ParseMediaType(candidate)
		if err != nil {
			continue
		}
		switch {
		case mediaType == "image/jpg":
			return models.DefaultMIMEType
		case strings.HasPrefix(mediaType, "image/"), mediaType == "application/pdf":
			return mediaType
		}
	}
	return models.DefaultMIMEType
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
