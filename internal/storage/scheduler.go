package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// SchedulerConfig configures periodic database file copies.
type SchedulerConfig struct {
	// Interval is how often to copy the database. Must be positive.
	Interval time.Duration

	// Dir receives the copies. Empty means DB.DefaultBackupDir.
	Dir string

	// Keep is how many copies to retain; older ones are removed after each
	// successful copy. Zero keeps everything.
	Keep int

	// StartImmediately copies once when the scheduler starts.
	StartImmediately bool

	// OnBackupComplete is called after each attempt.
	OnBackupComplete func(path string, err error)

	Logger *slog.Logger
}

// BackupScheduler copies the database file on a fixed interval.
type BackupScheduler struct {
	db     *DB
	config SchedulerConfig

	mu           sync.RWMutex
	cancel       context.CancelFunc
	done         chan struct{}
	lastBackup   time.Time
	lastError    error
	backupCount  int
	failureCount int
}

// NewBackupScheduler creates a scheduler for db.
func NewBackupScheduler(db *DB, config SchedulerConfig) (*BackupScheduler, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("backup interval must be positive: %s", config.Interval)
	}
	if config.Keep < 0 {
		return nil, fmt.Errorf("backup retention cannot be negative: %d", config.Keep)
	}
	if config.Dir == "" {
		config.Dir = db.DefaultBackupDir()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &BackupScheduler{db: db, config: config}, nil
}

// Start runs the scheduler until Stop is called or ctx is done.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return nil
}

// Stop stops the scheduler and waits for a running copy to finish.
func (s *BackupScheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("scheduler is not running")
	}
	cancel()
	<-done
	return nil
}

func (s *BackupScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.config.StartImmediately {
		s.runBackup(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *BackupScheduler) runBackup(ctx context.Context) {
	path, err := s.db.BackupFile(ctx, s.config.Dir)
	if err == nil && s.config.Keep > 0 {
		if _, pruneErr := PruneBackupFiles(s.config.Dir, s.config.Keep); pruneErr != nil {
			s.config.Logger.Warn("Pruning database copies failed", "dir", s.config.Dir, "error", pruneErr)
		}
	}

	s.mu.Lock()
	s.lastBackup = time.Now()
	s.lastError = err
	if err != nil {
		s.failureCount++
	} else {
		s.backupCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.config.Logger.Warn("Scheduled database copy failed", "error", err)
	} else {
		s.config.Logger.Debug("Scheduled database copy written", "path", path)
	}
	if s.config.OnBackupComplete != nil {
		s.config.OnBackupComplete(path, err)
	}
}

// Status returns the current scheduler status.
func (s *BackupScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:      s.cancel != nil,
		Interval:     s.config.Interval,
		LastBackup:   s.lastBackup,
		BackupCount:  s.backupCount,
		FailureCount: s.failureCount,
		LastError:    s.lastError,
	}
	if status.Running && !s.lastBackup.IsZero() {
		status.NextBackup = s.lastBackup.Add(s.config.Interval)
	}
	return status
}

// SchedulerStatus contains information about the scheduler state.
type SchedulerStatus struct {
	Running      bool
	Interval     time.Duration
	LastBackup   time.Time
	NextBackup   time.Time
	BackupCount  int
	FailureCount int
	LastError    error
}

// String returns a human-readable representation of the scheduler status.
func (s SchedulerStatus) String() string {
	if !s.Running {
		return "Scheduler: Stopped"
	}

	status := "Scheduler: Running\n"
	status += fmt.Sprintf("  Interval: %s\n", s.Interval)
	status += fmt.Sprintf("  Total Copies: %d\n", s.BackupCount)
	status += fmt.Sprintf("  Failures: %d\n", s.FailureCount)
	if !s.LastBackup.IsZero() {
		status += fmt.Sprintf("  Last Copy: %s\n", s.LastBackup.Format(time.RFC3339))
	}
	if !s.NextBackup.IsZero() {
		status += fmt.Sprintf("  Next Copy: %s\n", s.NextBackup.Format(time.RFC3339))
	}
	if s.LastError != nil {
		status += fmt.Sprintf("  Last Error: %v\n", s.LastError)
	}
	return status
}

// PruneBackupFiles removes all but the newest keep copies in dir and returns
// how many were removed.
func PruneBackupFiles(dir string, keep int) (int, error) {
	files, err := ListBackupFiles(dir)
	if err != nil {
		return 0, err
	}
	if keep < 0 || len(files) <= keep {
		return 0, nil
	}

	removed := 0
	for _, f := range files[keep:] {
		if err := os.Remove(f.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", f.Name, err)
		}
		removed++
	}
	return removed, nil
}
