package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"learntrust-backend/internal/certificates"
	"learntrust-backend/internal/models"
	"learntrust-backend/internal/repository"
)

// Pool drains certificate issuance jobs off Redis. Workers take a
// per-job lock before processing so duplicate deliveries, or a second
// process draining the same queue, cannot double-issue.
type Pool struct {
	redis        *redis.Client
	certs        *certificates.Service
	progressRepo *repository.ProgressRepo
	workerCount  int
	stopChan     chan struct{}
}

func NewPool(redisClient *redis.Client, certs *certificates.Service, progressRepo *repository.ProgressRepo, workerCount int) *Pool {
	return &Pool{
		redis:        redisClient,
		certs:        certs,
		progressRepo: progressRepo,
		workerCount:  workerCount,
		stopChan:     make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{models.CertificateQueue}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		var processErr error
		switch job.Type {
		case models.JobTypeCertificateIssuance:
			processErr = p.processIssuance(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			log.Printf("Job %s completed successfully", job.ID)
		}

		p.redis.Del(ctx, lockKey)
	}
}

// processIssuance re-checks course completion at issuance time. State
// may have changed between enqueue and pickup, and the certificate is
// the one artifact that must never get ahead of the progress records.
func (p *Pool) processIssuance(ctx context.Context, job *models.Job) error {
	done, err := p.progressRepo.CourseCompleted(ctx, job.StudentID, job.CourseID)
	if err != nil {
		return fmt.Errorf("failed to check course completion: %w", err)
	}
	if !done {
		log.Printf("Job %s: course %s no longer complete for student %s, dropping", job.ID, job.CourseID, job.StudentID)
		return nil
	}

	cert, err := p.certs.Issue(ctx, job.StudentID, job.CourseID)
	if errors.Is(err, certificates.ErrAlreadyIssued) {
		// Duplicate delivery; the first issuance won.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to issue certificate: %w", err)
	}

	log.Printf("Issued certificate %s for student %s, course %s", cert.ID, job.StudentID, job.CourseID)
	return nil
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < 3 {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), models.CertificateQueue, string(jobBytes))
		})
	} else {
		log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	}
}
