package sync

import (
	"time"

	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
)

// DefaultChunkSize is the bulk endpoint limit per submitted job.
const DefaultChunkSize = 100

// JobStatusGetter polls the state of an async bulk job.
type JobStatusGetter interface {
	GetJobStatus(jobID string) (*M.ZendeskJobStatus, error)
}

// SubmitFunc submits one chunk of the batch, identified by its half-open
// item range [lo, hi), and returns the created job handle.
type SubmitFunc func(lo, hi int) (*M.ZendeskJobStatus, error)

// BatchResult is one per-item outcome, with Index referring back to the
// item's position in the originally submitted batch.
type BatchResult struct {
	Index     int
	ID        int64
	Status    string
	Details   string
	Duplicate bool
}

// JobRunner submits bulk operations in fixed-size chunks and awaits each
// job's terminal state.
type JobRunner struct {
	Jobs         JobStatusGetter
	ChunkSize    int
	PollInterval time.Duration
	PollAttempts int
}

// NewJobRunner returns a runner with the default chunking and a one second,
// hundred attempt poll budget.
func NewJobRunner(jobs JobStatusGetter) *JobRunner {
	return &JobRunner{
		Jobs:         jobs,
		ChunkSize:    DefaultChunkSize,
		PollInterval: time.Second,
		PollAttempts: 100,
	}
}

// SubmitAndAwait partitions total items into chunks, submits each through
// submit and polls every resulting job until terminal. The returned slice
// correlates one to one, in order, with the submitted items. Exhausting the
// poll budget is a hard JobTimeoutError, never a silent exit.
func (r *JobRunner) SubmitAndAwait(total int, submit SubmitFunc) ([]BatchResult, error) {
	chunkSize := r.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	results := make([]BatchResult, 0, total)
	for lo := 0; lo < total; lo += chunkSize {
		hi := lo + chunkSize
		if hi > total {
			hi = total
		}

		job, err := submit(lo, hi)
		if err != nil {
			return results, err
		}

		job, err = r.awaitJob(job)
		if err != nil {
			return results, err
		}

		if job.Status == M.ZendeskJobStatusFailed {
			log.WithFields(log.Fields{"job_id": job.ID, "message": job.Message}).
				Error("Bulk job failed.")
			for i := lo; i < hi; i++ {
				results = append(results, BatchResult{
					Index:   i,
					Status:  M.ZendeskJobResultFailed,
					Details: job.Message,
				})
			}
			continue
		}

		for i := range job.Results {
			item := &job.Results[i]
			results = append(results, BatchResult{
				Index:     lo + item.Index,
				ID:        item.ID,
				Status:    item.Status,
				Details:   item.Details,
				Duplicate: item.IsDuplicate(),
			})
		}
	}

	return results, nil
}

// awaitJob polls the job until a terminal state, up to the attempt budget.
func (r *JobRunner) awaitJob(job *M.ZendeskJobStatus) (*M.ZendeskJobStatus, error) {
	logCtx := log.WithFields(log.Fields{"job_id": job.ID, "job_url": job.URL})
	logCtx.Info("Waiting for job.")

	if job.IsTerminal() {
		return job, nil
	}

	for attempt := 0; attempt < r.PollAttempts; attempt++ {
		time.Sleep(r.PollInterval)

		polled, err := r.Jobs.GetJobStatus(job.ID)
		if err != nil {
			return job, err
		}
		job = polled

		if job.Status == M.ZendeskJobStatusCompleted {
			for i := range job.Results {
				if job.Results[i].Status == M.ZendeskJobResultFailed {
					logCtx.WithFields(log.Fields{"index": job.Results[i].Index,
						"details": job.Results[i].Details}).Warn("Job item failed.")
				}
			}
			return job, nil
		}

		if job.Status == M.ZendeskJobStatusFailed {
			logCtx.WithField("message", job.Message).Error("Job failed.")
			return job, nil
		}

		logCtx.WithField("status", job.Status).Debug("Job not terminal yet.")
	}

	return job, &JobTimeoutError{JobID: job.ID, Attempts: r.PollAttempts}
}

// FailedResults filters results down to non-recoverable failures. Duplicate
// conflicts are excluded, the caller resolves those by search-and-link.
func FailedResults(results []BatchResult) []BatchResult {
	var failed []BatchResult
	for i := range results {
		if results[i].Status == M.ZendeskJobResultFailed && !results[i].Duplicate {
			failed = append(failed, results[i])
		}
	}
	return failed
}
