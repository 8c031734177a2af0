package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"roles-service/internal/services"
)

// ExpiryJob deactivates role assignments whose expiry has passed.
type ExpiryJob struct {
	assignments *services.AssignmentService
	logger      *logrus.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewExpiryJob creates a new expiry job
func NewExpiryJob(assignments *services.AssignmentService, logger *logrus.Logger) *ExpiryJob {
	return &ExpiryJob{
		assignments: assignments,
		logger:      logger,
		interval:    15 * time.Minute,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the expiry job
func (j *ExpiryJob) Start(ctx context.Context) {
	j.logger.Info("Assignment expiry job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.runExpiryCheck(ctx)

	for {
		select {
		case <-ticker.C:
			j.runExpiryCheck(ctx)
		case <-j.stopCh:
			j.logger.Info("Assignment expiry job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Assignment expiry job context cancelled")
			return
		}
	}
}

// Stop signals the job to stop
func (j *ExpiryJob) Stop() {
	close(j.stopCh)
}

func (j *ExpiryJob) runExpiryCheck(ctx context.Context) {
	j.logger.Debug("Running assignment expiry check...")

	count, err := j.assignments.DeactivateExpired(ctx)
	if err != nil {
		j.logger.Errorf("Failed to deactivate expired assignments: %v", err)
		return
	}

	if count > 0 {
		j.logger.Infof("Deactivated %d expired assignments", count)
	}
}
