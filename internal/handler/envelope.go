package handler

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/kdduha/vick-gateway/internal/models"
)

// fallbackEnvelope is written when an envelope cannot be encoded.
var fallbackEnvelope = []byte(`{"status":"partial","analyse":{"message":"internal error","predictions":[]},"source":"image_upload","message":"internal error","predictions":[]}`)

// writeEnvelope always answers 200 with a JSON body. ConfigStd sorts map keys,
// so equal envelopes encode to equal bytes.
func writeEnvelope(w http.ResponseWriter, env models.AnalysisEnvelope) {
	data, err := sonic.ConfigStd.Marshal(env)
	if err != nil {
		data = fallbackEnvelope
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
