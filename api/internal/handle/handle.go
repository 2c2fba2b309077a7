package handle

import (
	"encoding/json"
	"net/http"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/media"

	"go.uber.org/zap"
)

type Handle struct {
	svc       *analyzer.Service
	validator media.Validator
	log       *zap.Logger
}

func New(svc *analyzer.Service, v media.Validator, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{svc: svc, validator: v, log: log}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
