package scheduler

import (
	"sync"

	"github.com/smohades/reachcheck/internal/domain"
)

// Progress tracks live sweep counters for the status API. Safe for
// concurrent use; readers get point-in-time snapshots.
type Progress struct {
	mu              sync.RWMutex
	total           int
	done            int
	success         int
	failure         int
	errors          int
	sourcesComplete int
}

func NewProgress() *Progress {
	return &Progress{}
}

func (p *Progress) start(total int) {
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
}

func (p *Progress) record(kind domain.ResultKind) {
	p.mu.Lock()
	p.done++
	switch kind {
	case domain.Success:
		p.success++
	case domain.Failure:
		p.failure++
	default:
		p.errors++
	}
	p.mu.Unlock()
}

func (p *Progress) sourceComplete() {
	p.mu.Lock()
	p.sourcesComplete++
	p.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Total           int `json:"total"`
	Done            int `json:"done"`
	Success         int `json:"success"`
	Failure         int `json:"failure"`
	Errors          int `json:"errors"`
	SourcesComplete int `json:"sources_complete"`
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		Total:           p.total,
		Done:            p.done,
		Success:         p.success,
		Failure:         p.failure,
		Errors:          p.errors,
		SourcesComplete: p.sourcesComplete,
	}
}
