package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/Brownie44l1/malaria-api/internal/inference"
	"github.com/Brownie44l1/malaria-api/internal/model"
)

// uploadFields are the multipart field names accepted for the image, in order.
var uploadFields = []string{"file", "image"}

type Handler struct {
	pipeline       *inference.Pipeline
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewHandler(pipeline *inference.Pipeline, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline:       pipeline,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes registers every endpoint behind the CORS and request ID middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Home)
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/predict/tensor", h.PredictTensor)
	return withRequestID(enableCORS(mux))
}

type homeResponse struct {
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
		return
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, homeResponse{
		Message:     "Malaria Prediction API",
		ModelLoaded: h.pipeline.ModelLoaded(),
	})
}

type healthResponse struct {
	Status        string            `json:"status"`
	ModelLoaded   bool              `json:"model_loaded"`
	Architecture  string            `json:"architecture,omitempty"`
	Strategy      string            `json:"strategy,omitempty"`
	LowConfidence bool              `json:"low_confidence,omitempty"`
	InputShape    *model.InputShape `json:"input_shape,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	resp := healthResponse{Status: "degraded"}
	if m, err := h.pipeline.Model(); err == nil {
		shape := m.Shape
		resp = healthResponse{
			Status:        "healthy",
			ModelLoaded:   true,
			Architecture:  m.Architecture,
			Strategy:      m.Strategy,
			LowConfidence: m.LowConfidence,
			InputShape:    &shape,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	logger := h.logger.With("request_id", requestIDFrom(r.Context()))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to parse form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := formFile(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "No image file provided. Use 'file' as the form field name",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to read upload"})
		return
	}
	logger.Info("received file", "filename", header.Filename, "size", header.Size)

	result, err := h.pipeline.Predict(r.Context(), data)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}

	logger.Info("prediction",
		"label", result.Prediction, "confidence", result.Confidence, "risk", result.RiskLevel)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) PredictTensor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	logger := h.logger.With("request_id", requestIDFrom(r.Context()))

	var req model.TensorRequest
	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	result, err := h.pipeline.PredictTensor(r.Context(), req.Input)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	var err error
	for _, field := range uploadFields {
		var file multipart.File
		var header *multipart.FileHeader
		file, header, err = r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
	}
	return nil, nil, err
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps pipeline errors to a status code and an {"error": ...} body.
func (h *Handler) writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		decodeErr *model.ImageDecodeError
		prepErr   *model.PreprocessingError
		inferErr  *model.InferenceError
	)

	switch {
	case errors.Is(err, model.ErrModelUnavailable):
		logger.Warn("prediction rejected", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Model not loaded"})
	case errors.As(err, &decodeErr):
		logger.Info("undecodable upload", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &prepErr):
		logger.Error("preprocessing error", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &inferErr):
		logger.Error("prediction error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		logger.Error("prediction error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
