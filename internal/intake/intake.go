// Package intake implements the HTTP surface that accepts a label image,
// stages it for the worker, and reports on job status.
package intake

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
	"github.com/aerocristobal/label-verify/infrastructure/httputil"
	"github.com/aerocristobal/label-verify/infrastructure/logging"
	"github.com/aerocristobal/label-verify/infrastructure/metrics"
	"github.com/aerocristobal/label-verify/internal/blobstore"
	"github.com/aerocristobal/label-verify/internal/cipher"
	"github.com/aerocristobal/label-verify/internal/jobstore"
	"github.com/aerocristobal/label-verify/internal/model"
	"github.com/aerocristobal/label-verify/internal/queue"
)

const (
	minImageBytes = 1024
	maxImageBytes = 10 << 20
	maxMemory     = 16 << 20
)

// Handler wires the intake HTTP endpoints to the blob store, job store,
// queue, and cipher.
type Handler struct {
	Cipher  *cipher.Cipher
	Blob    *blobstore.Store
	Jobs    *jobstore.Store
	Queue   *queue.Queue
	DB      *sql.DB
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

const serviceName = "label-verify-intake"

// Routes registers the intake endpoints on router.
func (h *Handler) Routes(router *mux.Router) {
	router.HandleFunc("/api/v1/verify", h.Submit).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/verify/{job_id}", h.Status).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

type submitResponse struct {
	JobID   string          `json:"job_id"`
	Status  model.JobStatus `json:"status"`
	Message string          `json:"message"`
}

// Submit accepts a multipart label image plus optional expected-field
// hints, encrypts and stores the image, and enqueues a verification job.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("image", "could not parse multipart form"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		httputil.WriteError(w, apperrors.MissingParameter("image"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		httputil.WriteError(w, apperrors.Internal("read uploaded image", err))
		return
	}
	if len(data) > maxImageBytes {
		httputil.WriteError(w, apperrors.TooLarge(maxImageBytes))
		return
	}
	if len(data) < minImageBytes {
		httputil.WriteError(w, apperrors.InvalidInput("image", "image is smaller than 1024 bytes"))
		return
	}

	if !sniffSupportedImage(data) {
		httputil.WriteError(w, apperrors.InvalidFormat("image", "jpeg, png, or webp"))
		return
	}

	var expectedBrand, expectedClass *string
	if v := strings.TrimSpace(r.FormValue("brand_name")); v != "" {
		expectedBrand = &v
	}
	if v := strings.TrimSpace(r.FormValue("class_type")); v != "" {
		expectedClass = &v
	}
	var expectedABV *float64
	if raw := strings.TrimSpace(r.FormValue("expected_abv")); raw != "" {
		abv, err := strconv.ParseFloat(raw, 64)
		if err != nil || abv < 0 || abv > 100 {
			httputil.WriteError(w, apperrors.InvalidInput("expected_abv", "must be a number from 0 to 100"))
			return
		}
		expectedABV = &abv
	}

	encrypted, err := h.Cipher.Encrypt(data)
	if err != nil {
		h.Logger.Error(ctx, "encrypt uploaded image", err, nil)
		httputil.WriteError(w, err)
		return
	}

	jobID := uuid.NewString()
	imageKey := fmt.Sprintf("images/%s.enc", jobID)

	if err := h.Blob.Put(ctx, imageKey, encrypted, "application/octet-stream"); err != nil {
		h.Logger.Error(ctx, "upload encrypted image", err, map[string]interface{}{"job_id": jobID})
		httputil.WriteError(w, err)
		return
	}

	job, err := h.Jobs.Create(ctx, imageKey, "")
	if err != nil {
		h.Logger.Error(ctx, "create job record", err, map[string]interface{}{"job_id": jobID})
		httputil.WriteError(w, err)
		return
	}

	queued := model.QueuedJob{
		JobID:         job.ID,
		ImageKey:      imageKey,
		ExpectedBrand: expectedBrand,
		ExpectedClass: expectedClass,
		ExpectedABV:   expectedABV,
	}
	if err := h.Queue.Enqueue(ctx, queued); err != nil {
		h.Logger.Error(ctx, "enqueue job", err, map[string]interface{}{"job_id": job.ID})
		httputil.WriteError(w, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordJobSubmitted(serviceName)
	}

	httputil.WriteJSON(w, http.StatusOK, submitResponse{JobID: job.ID, Status: job.Status, Message: "verification job accepted"})
}

type statusResponse struct {
	JobID  string                      `json:"job_id"`
	Status model.JobStatus             `json:"status"`
	Result *model.VerificationResult   `json:"result,omitempty"`
	Error  string                      `json:"error,omitempty"`
}

// Status reports the current lifecycle state and, once available, the
// verification result for a job.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]

	job, err := h.Jobs.Get(r.Context(), jobID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if job == nil {
		httputil.NotFound(w, "job not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		JobID:  job.ID,
		Status: job.Status,
		Result: job.VerificationResult,
		Error:  job.Error,
	})
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health reports 200 when both the database and queue respond, else 503.
// Each component's response body carries its observed latency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	healthy := true

	dbStart := time.Now()
	if err := h.DB.PingContext(ctx); err != nil {
		healthy = false
		components["database"] = "error: " + err.Error()
	} else {
		components["database"] = time.Since(dbStart).String()
	}

	queueStart := time.Now()
	if err := h.Queue.Health(ctx); err != nil {
		healthy = false
		components["queue"] = "error: " + err.Error()
	} else {
		components["queue"] = time.Since(queueStart).String()
	}

	status := http.StatusOK
	statusText := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "unhealthy"
	}
	httputil.WriteJSON(w, status, healthResponse{Status: statusText, Components: components})
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
)

// sniffSupportedImage reports whether data begins with a JPEG, PNG, or
// WebP signature, regardless of the declared multipart content type.
func sniffSupportedImage(data []byte) bool {
	if bytes.HasPrefix(data, jpegMagic) {
		return true
	}
	if bytes.HasPrefix(data, pngMagic) {
		return true
	}
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return true
	}
	return false
}
