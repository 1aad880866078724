// Package worker implements the single-threaded dequeue/process loop that
// turns a queued job into a persisted verification result.
package worker

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
	"github.com/aerocristobal/label-verify/infrastructure/logging"
	"github.com/aerocristobal/label-verify/infrastructure/metrics"
	"github.com/aerocristobal/label-verify/internal/jobstore"
	"github.com/aerocristobal/label-verify/internal/model"
	"github.com/aerocristobal/label-verify/internal/verify"
)

// DefaultPollInterval is how long the loop sleeps after an empty dequeue.
const DefaultPollInterval = time.Second

const serviceName = "label-verify-worker"

// BlobGetter retrieves an encrypted image blob by key.
type BlobGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Decrypter opens a blob produced by the cipher used at intake time.
type Decrypter interface {
	Decrypt(blob []byte) ([]byte, error)
}

// Extractor calls the vision model to pull structured fields from a
// decrypted label image.
type Extractor interface {
	Extract(ctx context.Context, imageBytes []byte) (*model.ExtractedLabelFields, error)
}

// JobUpdater is the subset of the job store the worker loop mutates.
type JobUpdater interface {
	SetStatus(ctx context.Context, id string, status model.JobStatus) error
	SetResult(ctx context.Context, id string, status model.JobStatus, result *model.VerificationResult, jobErr string) error
	SetExtractedFields(ctx context.Context, id string, fields *model.ExtractedLabelFields) error
	IncrementRetry(ctx context.Context, id string) (int, error)
	RecordMatchHistory(ctx context.Context, entry model.MatchHistoryEntry) error
}

// QueueHandle is the subset of the reliable queue the worker loop uses.
type QueueHandle interface {
	Dequeue(ctx context.Context) (*model.QueuedJob, error)
	Enqueue(ctx context.Context, job model.QueuedJob) error
	Complete(ctx context.Context, job model.QueuedJob) error
}

// Worker drains the reliable queue and drives each job through decrypt,
// extract, and verify.
type Worker struct {
	Blob         BlobGetter
	Cipher       Decrypter
	Jobs         JobUpdater
	Queue        QueueHandle
	Vision       Extractor
	References   verify.ReferenceSources
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
	PollInterval time.Duration
}

// Run loops until ctx is canceled, processing one job at a time.
func (w *Worker) Run(ctx context.Context) {
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := w.Queue.Dequeue(ctx)
		if err != nil {
			w.Logger.Error(ctx, "dequeue failed", err, nil)
			sleepOrDone(ctx, interval)
			continue
		}
		if payload == nil {
			sleepOrDone(ctx, interval)
			continue
		}

		w.processJob(ctx, *payload)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *Worker) processJob(ctx context.Context, payload model.QueuedJob) {
	fields := map[string]interface{}{"job_id": payload.JobID}
	start := time.Now()

	if err := w.Jobs.SetStatus(ctx, payload.JobID, model.JobStatusProcessing); err != nil {
		w.Logger.Error(ctx, "set status to processing", err, fields)
	}
	w.Logger.LogJobTransition(ctx, payload.JobID, string(model.JobStatusPending), string(model.JobStatusProcessing))

	result, err := w.processInner(ctx, payload)
	if err == nil {
		if setErr := w.Jobs.SetResult(ctx, payload.JobID, model.JobStatusCompleted, result, ""); setErr != nil {
			w.Logger.Error(ctx, "record completed result", setErr, fields)
		}
		w.Logger.LogJobTransition(ctx, payload.JobID, string(model.JobStatusProcessing), string(model.JobStatusCompleted))
		if compErr := w.Queue.Complete(ctx, payload); compErr != nil {
			w.Logger.Error(ctx, "complete queue entry", compErr, fields)
		}
		if w.Metrics != nil {
			w.Metrics.RecordJobCompleted(serviceName, string(model.JobStatusCompleted), time.Since(start))
		}
		return
	}

	w.Logger.Error(ctx, "job processing failed", err, fields)

	count, incErr := w.Jobs.IncrementRetry(ctx, payload.JobID)
	if incErr != nil {
		w.Logger.Error(ctx, "increment retry count", incErr, fields)
	}

	if count >= jobstore.MaxRetries {
		failMsg := fmt.Sprintf("processing failed after %d retries: %v", count, err)
		if setErr := w.Jobs.SetResult(ctx, payload.JobID, model.JobStatusFailed, nil, failMsg); setErr != nil {
			w.Logger.Error(ctx, "record failed result", setErr, fields)
		}
		w.Logger.LogJobTransition(ctx, payload.JobID, string(model.JobStatusProcessing), string(model.JobStatusFailed))
		if compErr := w.Queue.Complete(ctx, payload); compErr != nil {
			w.Logger.Error(ctx, "complete queue entry after failure", compErr, fields)
		}
		if w.Metrics != nil {
			w.Metrics.RecordJobCompleted(serviceName, string(model.JobStatusFailed), time.Since(start))
		}
		return
	}

	if enqErr := w.Queue.Enqueue(ctx, payload); enqErr != nil {
		w.Logger.Error(ctx, "re-enqueue job", enqErr, fields)
	}
	if compErr := w.Queue.Complete(ctx, payload); compErr != nil {
		w.Logger.Error(ctx, "complete stale queue entry", compErr, fields)
	}
	if setErr := w.Jobs.SetStatus(ctx, payload.JobID, model.JobStatusPending); setErr != nil {
		w.Logger.Error(ctx, "reset status to pending", setErr, fields)
	}
	w.Logger.LogJobTransition(ctx, payload.JobID, string(model.JobStatusProcessing), string(model.JobStatusPending))
}

func (w *Worker) processInner(ctx context.Context, payload model.QueuedJob) (*model.VerificationResult, error) {
	encrypted, err := w.Blob.Get(ctx, payload.ImageKey)
	if err != nil {
		return nil, err
	}

	plaintext, err := w.Cipher.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}

	visionStart := time.Now()
	fields, err := w.Vision.Extract(ctx, plaintext)
	visionDuration := time.Since(visionStart)
	w.Logger.LogVisionRequest(ctx, payload.JobID, visionDuration, err)
	if w.Metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		w.Metrics.RecordVisionRequest(serviceName, status, visionDuration)
	}
	if err != nil {
		return nil, err
	}

	if err := w.Jobs.SetExtractedFields(ctx, payload.JobID, fields); err != nil {
		w.Logger.Error(ctx, "persist extracted fields", err, map[string]interface{}{"job_id": payload.JobID})
	}

	result, err := verify.VerifyWithReference(ctx, *fields, payload.ExpectedBrand, payload.ExpectedClass, payload.ExpectedABV, w.References)
	if err != nil {
		return nil, apperrors.Internal("verification engine", err)
	}

	if err := w.Jobs.RecordMatchHistory(ctx, model.MatchHistoryEntry{
		JobID:             payload.JobID,
		MatchedBeverageID: result.MatchedBeverageID,
		MatchType:         result.MatchType,
		MatchConfidence:   nonZeroPtr(result.MatchConfidence),
		ABVDeviation:      result.ABVDeviation,
	}); err != nil {
		w.Logger.Error(ctx, "record match history", err, map[string]interface{}{"job_id": payload.JobID})
	}

	return &result, nil
}

func nonZeroPtr(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
