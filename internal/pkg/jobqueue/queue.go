package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/LukasWeidner/TalentFox/internal/pkg/cache"
)

const (
	// Redis key prefixes
	JobKeyPrefix     = "billing_job:"
	JobQueueKey      = "billing_job_queue"
	JobProcessingKey = "billing_job_processing"

	// Job settings
	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour // Jobs expire after 24 hours
)

// Processor handles one dequeued job. Returning an error schedules a retry
// until MaxRetries is reached.
type Processor func(ctx context.Context, job *Job) error

// Queue is the at-least-once delivery tier for best-effort billing side
// effects (notifications, entitlement sync pushes). Financial transactions
// never wait on it; they enqueue after commit and move on.
type Queue struct {
	client     *redis.Client
	processors map[JobType]Processor
	workers    int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a new job queue
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 2
	}

	return &Queue{
		client:     cache.GetClient(),
		processors: make(map[JobType]Processor),
		workers:    workers,
		stopCh:     make(chan struct{}),
	}
}

// RegisterProcessor binds a processor to a job type. Must be called before
// Start.
func (q *Queue) RegisterProcessor(jobType JobType, p Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processors[jobType] = p
}

// Start starts the job queue workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops the job queue workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// worker processes jobs from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
			job, err := q.dequeueJob(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[JobQueue] Worker %d: Error dequeuing job: %v", id, err)
					time.Sleep(time.Second)
				}
				continue
			}

			if job != nil {
				log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
				q.processJob(ctx, job)
			}
		}
	}
}

// EnqueueJob adds a new job to the queue
func (q *Queue) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	ctx := context.Background()

	job := &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	jobKey := JobKeyPrefix + job.ID

	// Use a pipeline for atomic operations
	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobData, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// dequeueJob gets the next job from the queue
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	// Move job from pending queue to processing queue atomically
	jobID, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	jobKey := JobKeyPrefix + jobID
	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		// Job data not found, remove from processing queue
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("job data not found for ID %s", jobID)
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}

	now := time.Now()
	job.Status = JobStatusProcessing
	job.ProcessedAt = &now
	job.UpdatedAt = now
	q.updateJob(ctx, &job)

	return &job, nil
}

// processJob runs the registered processor and handles completion/retry.
func (q *Queue) processJob(ctx context.Context, job *Job) {
	defer q.client.LRem(ctx, JobProcessingKey, 1, job.ID)

	q.mu.Lock()
	processor, ok := q.processors[job.Type]
	q.mu.Unlock()
	if !ok {
		q.failJob(ctx, job, fmt.Sprintf("no processor registered for job type %s", job.Type))
		return
	}

	if err := q.runProcessor(ctx, processor, job); err != nil {
		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			q.failJob(ctx, job, err.Error())
			return
		}

		log.Warnf("[JobQueue] Job %s failed (retry %d/%d): %v", job.ID, job.RetryCount, job.MaxRetries, err)
		job.Status = JobStatusRetrying
		job.ErrorMsg = err.Error()
		job.UpdatedAt = time.Now()
		q.updateJob(ctx, job)
		q.client.RPush(ctx, JobQueueKey, job.ID)
		return
	}

	now := time.Now()
	job.Status = JobStatusCompleted
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.ErrorMsg = ""
	q.updateJob(ctx, job)
	log.Infof("[JobQueue] Job %s completed", job.ID)
}

func (q *Queue) runProcessor(ctx context.Context, processor Processor, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return processor(ctx, job)
}

func (q *Queue) failJob(ctx context.Context, job *Job, msg string) {
	log.Errorf("[JobQueue] Job %s failed permanently: %s", job.ID, msg)
	job.Status = JobStatusFailed
	job.ErrorMsg = msg
	job.UpdatedAt = time.Now()
	q.updateJob(ctx, job)
}

// updateJob persists job state back to Redis.
func (q *Queue) updateJob(ctx context.Context, job *Job) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, jobData, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}
