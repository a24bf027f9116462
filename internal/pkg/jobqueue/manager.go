package jobqueue

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/larinai/larinai/internal/pkg/cache"
	"github.com/larinai/larinai/internal/pkg/env"
)

// Manager owns the process-wide job queue
type Manager struct {
	queue   *Queue
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := env.GetEnvInt("JOBQUEUE_WORKERS", 3)
		globalManager = NewManager(cache.GetClient(), workerCount)
	})
	return globalManager
}

// NewManager builds a manager around its own queue
func NewManager(client *redis.Client, workers int) *Manager {
	return &Manager{queue: NewQueue(client, workers)}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue")
	m.queue.Start()
	log.Info("[JobQueue Manager] Started successfully")
}

// Stop waits for in-flight jobs and stops the workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	log.Info("[JobQueue Manager] Stopping job queue...")
	m.queue.Stop()
	m.running = false
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// QueuedJobs counts pending plus in-flight jobs; used by the gauge refresher.
func (m *Manager) QueuedJobs(ctx context.Context) (int64, error) {
	pending, err := m.queue.GetQueueSize(ctx)
	if err != nil {
		return 0, err
	}
	processing, err := m.queue.GetProcessingSize(ctx)
	if err != nil {
		return 0, err
	}
	return pending + processing, nil
}
