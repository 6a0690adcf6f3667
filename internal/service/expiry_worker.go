package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiryWorkerConfig holds configuration for the expiry worker
type ExpiryWorkerConfig struct {
	ScanInterval time.Duration
	BatchSize    int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: time.Minute,
		BatchSize:    100,
	}
}

// ExpiryWorkerStats holds statistics about the expiry worker
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"isRunning"`
	TotalExpired     int64     `json:"totalExpired"`
	TotalCompleted   int64     `json:"totalCompleted"`
	TotalFailed      int64     `json:"totalFailed"`
	LastScanTime     time.Time `json:"lastScanTime"`
	LastExpiredCount int       `json:"lastExpiredCount"`
}

// ExpiryWorker closes confirmed bookings whose expiry time has passed.
// Validated bookings become completed, the rest expired; both
// transitions release the booking's slot capacity.
type ExpiryWorker struct {
	bookings  BookingStore
	lifecycle *Lifecycle
	config    *ExpiryWorkerConfig
	now       Clock
	log       *zap.Logger

	mu             sync.Mutex
	running        bool
	stopCh         chan struct{}
	doneCh         chan struct{}
	totalExpired   int64
	totalCompleted int64
	totalFailed    int64
	lastScanTime   time.Time
	lastCount      int
}

// NewExpiryWorker creates a worker.  A nil config selects the defaults.
func NewExpiryWorker(bookings BookingStore, lifecycle *Lifecycle, now Clock, config *ExpiryWorkerConfig, log *zap.Logger) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = time.Minute
	}
	if config.BatchSize < 1 {
		config.BatchSize = 100
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExpiryWorker{bookings: bookings, lifecycle: lifecycle, config: config, now: now, log: log}
}

// Start runs the scan loop in a goroutine until Stop is called or ctx
// is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.log.Info("expiry worker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.config.ScanInterval)
		defer ticker.Stop()
		for {
			if _, err := w.ProcessExpired(ctx); err != nil {
				w.log.Error("expiry scan failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				w.markStopped()
				return
			case <-stop:
				w.markStopped()
				return
			case <-ticker.C:
			}
		}
	}()
}

func (w *ExpiryWorker) markStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Stop signals the loop to exit and waits for it.
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done
	w.log.Info("expiry worker stopped")
}

// ProcessExpired runs one scan and returns how many bookings it closed.
// A scan drains full batches until fewer than BatchSize bookings are
// left, so a backlog does not wait for the next tick.
func (w *ExpiryWorker) ProcessExpired(ctx context.Context) (int, error) {
	closed := 0
	defer func() {
		w.mu.Lock()
		w.lastScanTime = w.now()
		w.lastCount = closed
		w.mu.Unlock()
	}()
	for {
		batch, err := w.bookings.ListExpired(ctx, w.now(), w.config.BatchSize)
		if err != nil {
			return closed, err
		}
		failed := 0
		for i := range batch {
			b := &batch[i]
			validated := b.IsValidated
			var terr error
			if validated {
				terr = w.lifecycle.Complete(ctx, b)
			} else {
				terr = w.lifecycle.Expire(ctx, b)
				// validated after the scan read it
				if IsCode(terr, CodeAlreadyValidated) {
					validated, b.IsValidated = true, true
					terr = w.lifecycle.Complete(ctx, b)
				}
			}
			w.mu.Lock()
			switch {
			case terr != nil:
				w.totalFailed++
			case validated:
				w.totalCompleted++
			default:
				w.totalExpired++
			}
			w.mu.Unlock()
			if terr != nil {
				failed++
				w.log.Warn("expiry transition failed", zap.String("booking_id", b.BookingID), zap.Error(terr))
				continue
			}
			closed++
		}
		// A short batch means the backlog is drained.  A batch where
		// nothing moved would be returned again unchanged.
		if len(batch) < w.config.BatchSize || failed == len(batch) {
			return closed, nil
		}
		if err := ctx.Err(); err != nil {
			return closed, err
		}
	}
}

// GetStats returns current worker statistics
func (w *ExpiryWorker) GetStats() ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		TotalCompleted:   w.totalCompleted,
		TotalFailed:      w.totalFailed,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastCount,
	}
}
