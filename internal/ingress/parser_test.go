package ingress

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/kdduha/vick-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, build func(w *multipart.Writer)) (string, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	build(w)
	require.NoError(t, w.Close())
	return w.FormDataContentType(), &buf
}

func TestParseMultipartGarbageImage(t *testing.T) {
	garbage := []byte("0123456789")
	ct, body := multipartBody(t, func(w *multipart.Writer) {
		fw, err := w.CreateFormFile("image", "matches.png")
		require.NoError(t, err)
		_, err = fw.Write(garbage)
		require.NoError(t, err)
		require.NoError(t, w.WriteField("prompt", "test"))
	})

	req, err := NewParser(0).Parse(ct, body)
	require.NoError(t, err)

	assert.Equal(t, garbage, req.ImageBytes)
	assert.Equal(t, "test", req.PromptText)
	assert.Equal(t, models.DefaultMIMEType, req.MIMEType)
	assert.Equal(t, models.SourceImageUpload, req.Source)
}

func TestParseMultipartKeepsPartMIME(t *testing.T) {
	ct, body := multipartBody(t, func(w *multipart.Writer) {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="shot.png"`)
		h.Set("Content-Type", "image/png")
		fw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = fw.Write([]byte{0x89, 'P', 'N', 'G'})
		require.NoError(t, err)
	})

	req, err := NewParser(0).Parse(ct, body)
	require.NoError(t, err)

	assert.Equal(t, "image/png", req.MIMEType)
	assert.Empty(t, req.PromptText)
}

func TestParseMultipartPrefersImageField(t *testing.T) {
	ct, body := multipartBody(t, func(w *multipart.Writer) {
		other, err := w.CreateFormFile("history", "history.png")
		require.NoError(t, err)
		_, err = other.Write([]byte("history"))
		require.NoError(t, err)

		img, err := w.CreateFormFile("image", "matches.png")
		require.NoError(t, err)
		_, err = img.Write([]byte("matches"))
		require.NoError(t, err)
	})

	req, err := NewParser(0).Parse(ct, body)
	require.NoError(t, err)
	assert.Equal(t, []byte("matches"), req.ImageBytes)
}

func TestParseMultipartWithoutFile(t *testing.T) {
	ct, body := multipartBody(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("prompt", "test"))
	})

	_, err := NewParser(0).Parse(ct, body)
	require.Error(t, err)

	ierr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindEmptyBody, ierr.Kind)
	assert.Equal(t, "no image received", ierr.Message())
}

func TestParseMultipartBrokenBoundary(t *testing.T) {
	_, err := NewParser(0).Parse("multipart/form-data", strings.NewReader("--x\r\n"))

	ierr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformedEncoding, ierr.Kind)

	_, err = NewParser(0).Parse("multipart/form-data; boundary=abc", strings.NewReader("garbage without boundary"))
	ierr, ok = AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformedEncoding, ierr.Kind)
}

func TestParseJSONDataURL(t *testing.T) {
	body := `{"base64":"data:image/png;base64,AAAA","prompt":"analyse"}`

	req, err := NewParser(0).Parse("application/json", strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 0}, req.ImageBytes)
	assert.Equal(t, "image/png", req.MIMEType)
	assert.Equal(t, "analyse", req.PromptText)
	assert.Equal(t, models.SourceBase64Upload, req.Source)
}

func TestParseJSONImageFieldAndPromptText(t *testing.T) {
	body := `{"image":"AAAA","mimeType":"image/webp","promptText":"scan"}`

	req, err := NewParser(0).Parse("application/json; charset=utf-8", strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 0}, req.ImageBytes)
	assert.Equal(t, "image/webp", req.MIMEType)
	assert.Equal(t, "scan", req.PromptText)
}

func TestParseJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
	}{
		{name: "invalid json", body: `{"base64":`, kind: KindMalformedEncoding},
		{name: "empty body", body: ``, kind: KindEmptyBody},
		{name: "missing image", body: `{"prompt":"x"}`, kind: KindEmptyBody},
		{name: "bad base64", body: `{"base64":"!!!not base64!!!"}`, kind: KindMalformedEncoding},
		{name: "empty after prefix", body: `{"base64":"data:image/png;base64,"}`, kind: KindEmptyBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(0).Parse("application/json", strings.NewReader(tt.body))

			ierr, ok := AsError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.kind, ierr.Kind)
		})
	}
}

func TestParseUnsupportedContentType(t *testing.T) {
	_, err := NewParser(0).Parse("application/xml", strings.NewReader("<x/>"))

	ierr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformedEncoding, ierr.Kind)
}

func TestParseRequestTooLarge(t *testing.T) {
	body := `{"base64":"` + strings.Repeat("A", 4096) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/api/analyse", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	_, err := NewParser(128).ParseRequest(httptest.NewRecorder(), r)

	ierr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTooLarge, ierr.Kind)
}

func TestDecodeBase64(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantData []byte
		wantMIME string
	}{
		{name: "data url", in: "data:image/png;base64,AAAA", wantData: []byte{0, 0, 0}, wantMIME: "image/png"},
		{name: "bare prefix", in: "base64,AAAA", wantData: []byte{0, 0, 0}},
		{name: "plain", in: "  AAAA  ", wantData: []byte{0, 0, 0}},
		{name: "unpadded", in: "AAA", wantData: []byte{0, 0}},
		{name: "url safe", in: "_-8=", wantData: []byte{0xff, 0xef}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mime, err := DecodeBase64(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, data)
			assert.Equal(t, tt.wantMIME, mime)
		})
	}
}

func TestNormalizeMIME(t *testing.T) {
	assert.Equal(t, "image/png", NormalizeMIME("", "image/png"))
	assert.Equal(t, "image/webp", NormalizeMIME("image/webp", "image/png"))
	assert.Equal(t, "image/jpeg", NormalizeMIME("image/jpg", ""))
	assert.Equal(t, "image/jpeg", NormalizeMIME("application/octet-stream", ""))
	assert.Equal(t, "image/jpeg", NormalizeMIME("", ""))
	assert.Equal(t, "application/pdf", NormalizeMIME("application/pdf", ""))
	assert.Equal(t, "image/png", NormalizeMIME("image/png; name=x", ""))
}

func TestSourceFor(t *testing.T) {
	assert.Equal(t, models.SourceImageUpload, SourceFor("multipart/form-data; boundary=x"))
	assert.Equal(t, models.SourceBase64Upload, SourceFor("application/json"))
	assert.Equal(t, models.SourceBase64Upload, SourceFor(""))
	assert.Equal(t, models.SourceImageUpload, SourceFor("application/xml"))
}
