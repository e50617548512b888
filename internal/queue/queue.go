package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

var ErrTimeout = errors.New("queue timeout")

const JobTypeSiteCheck = "site_check"

// Job asks a worker to run the listed checks against one site.
type Job struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	SiteID    string        `json:"site_id"`
	URL       string        `json:"url"`
	Kinds     []checks.Kind `json:"kinds"`
	Priority  int           `json:"priority"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewSiteCheck builds a job with a fresh id.
func NewSiteCheck(siteID, url string, kinds []checks.Kind) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeSiteCheck,
		SiteID:    siteID,
		URL:       url,
		Kinds:     kinds,
		CreatedAt: time.Now().UTC(),
	}
}

// score orders jobs: explicit priorities (lower first) come before
// unprioritized jobs, which are served in arrival order.
func (j *Job) score(now time.Time) float64 {
	if j.Priority != 0 {
		return float64(j.Priority)
	}
	return float64(now.Unix())
}

type Queue interface {
	Push(ctx context.Context, job *Job) error
	// Pop blocks up to timeout and returns ErrTimeout when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)
	Length(ctx context.Context) (int64, error)
}

// MemoryQueue is a process-local Queue for single binary deployments and
// tests.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   []memoryItem
	seq    uint64
	notify chan struct{}
	now    func() time.Time
}

type memoryItem struct {
	job   *Job
	score float64
	seq   uint64
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		notify: make(chan struct{}, 1),
		now:    time.Now,
	}
}

func (q *MemoryQueue) Push(_ context.Context, job *Job) error {
	q.mu.Lock()
	q.seq++
	q.jobs = append(q.jobs, memoryItem{job: job, score: job.score(q.now()), seq: q.seq})
	sort.SliceStable(q.jobs, func(i, k int) bool {
		if q.jobs[i].score != q.jobs[k].score {
			return q.jobs[i].score < q.jobs[k].score
		}
		return q.jobs[i].seq < q.jobs[k].seq
	})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if job := q.take(); job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			if job := q.take(); job != nil {
				return job, nil
			}
			return nil, ErrTimeout
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) take() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0].job
	q.jobs = q.jobs[1:]
	if len(q.jobs) > 0 {
		// wake another waiting worker
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return job
}

func (q *MemoryQueue) Length(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}
