package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/analyzer/remote"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/metrics"
	"leaf-doctor/api/internal/util"

	"go.uber.org/zap"
)

const maxBodyBytes = 16 << 20

// requestTimeout reads X-Request-Timeout ("20", "20s") or ?timeoutSec=.
func requestTimeout(r *http.Request) time.Duration {
	raw := strings.TrimSpace(r.Header.Get("X-Request-Timeout"))
	if raw == "" {
		raw = r.URL.Query().Get("timeoutSec")
	}
	if raw == "" {
		return 0
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return 0
}

func statusFor(kind analyzer.ErrorKind) int {
	switch kind {
	case analyzer.KindTimeout:
		return http.StatusGatewayTimeout
	case analyzer.KindInvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// Diagnose handles POST /v1/diagnose.
func (h *Handle) Diagnose(w http.ResponseWriter, r *http.Request) {
	var req remote.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, remote.ErrorBody{Error: "bad json: " + err.Error()})
		return
	}

	img, hintMIME, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
	if err != nil || len(img) == 0 {
		writeJSON(w, http.StatusBadRequest, remote.ErrorBody{Error: "bad image_b64"})
		return
	}
	c := media.NewCandidate(img, util.PickMIME(req.MIME, hintMIME, img), media.SourcePicker)
	if v := h.validator.Validate(c); !v.Accepted {
		metrics.ValidationRejectionsTotal.WithLabelValues(v.Reason.String()).Inc()
		writeJSON(w, http.StatusBadRequest, remote.ErrorBody{Error: v.Err().Error(), Reason: v.Reason.String()})
		return
	}

	eng, err := h.svc.Manager().Lookup(req.Engine)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, remote.ErrorBody{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if d := requestTimeout(r); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	d, err := h.svc.AnalyzeWith(ctx, eng, 0, c)
	if err != nil {
		kind := analyzer.Classify(err)
		h.log.Warn("diagnose failed", zap.String("engine", eng.Name()), zap.Stringer("kind", kind), zap.Error(err))
		writeJSON(w, statusFor(kind), remote.ErrorBody{Error: err.Error(), Kind: kind.String()})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Engines handles GET /v1/engines.
func (h *Handle) Engines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"engines": h.svc.Manager().Names()})
}
