package barstore

import (
	"database/sql"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// writeOp is one buffered bar upsert.
type writeOp struct {
	query string
	args  []any
}

// batchWriter buffers bar upserts and flushes them in one transaction,
// either when the buffer fills or on a fixed interval — the Data Sync
// Worker's per-pair pacing (spec.md §4.F, 500ms between requests) lines up
// naturally with the interval-based flush, so a page of bars fetched for
// one pair drains together with whatever arrived for other pairs in the
// meantime.
type batchWriter struct {
	db          *sql.DB
	buffer      []writeOp
	mu          sync.Mutex
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	wg          sync.WaitGroup
	metrics     batchWriterMetrics
}

// batchWriterMetrics tracks how much the writer has flushed, surfaced via
// Store.WriterMetrics for diagnostics.
type batchWriterMetrics struct {
	TotalWrites   uint64    `json:"total_writes"`
	TotalBatches  uint64    `json:"total_batches"`
	TotalErrors   uint64    `json:"total_errors"`
	LastBatchSize int       `json:"last_batch_size"`
	LastFlushTime time.Time `json:"last_flush_time"`
}

func newBatchWriter(db *sql.DB, maxSize int, interval time.Duration) *batchWriter {
	if maxSize <= 0 {
		maxSize = 500
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &batchWriter{
		db:          db,
		buffer:      make([]writeOp, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.backgroundFlush()

	return bw
}

// write adds an upsert to the batch, flushing immediately if the buffer is
// full.
func (bw *batchWriter) write(query string, args ...any) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, writeOp{query: query, args: args})
	shouldFlush := len(bw.buffer) >= bw.maxSize
	bw.mu.Unlock()

	if shouldFlush {
		bw.flush()
	}
}

// flush immediately writes all buffered operations to the database.
func (bw *batchWriter) flush() error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}

	ops := bw.buffer
	bw.buffer = make([]writeOp, 0, bw.maxSize)
	bw.mu.Unlock()

	return bw.executeBatch(ops)
}

func (bw *batchWriter) executeBatch(ops []writeOp) error {
	if len(ops) == 0 {
		return nil
	}

	atomic.AddUint64(&bw.metrics.TotalWrites, uint64(len(ops)))
	atomic.AddUint64(&bw.metrics.TotalBatches, 1)
	bw.metrics.LastBatchSize = len(ops)
	bw.metrics.LastFlushTime = time.Now()

	tx, err := bw.db.Begin()
	if err != nil {
		atomic.AddUint64(&bw.metrics.TotalErrors, 1)
		log.Printf("barstore: batch writer failed to begin transaction: %v", err)
		return err
	}

	for _, op := range ops {
		if _, err := tx.Exec(op.query, op.args...); err != nil {
			tx.Rollback()
			atomic.AddUint64(&bw.metrics.TotalErrors, 1)
			log.Printf("barstore: batch writer query failed, rolling back: %v", err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		atomic.AddUint64(&bw.metrics.TotalErrors, 1)
		log.Printf("barstore: batch writer commit failed: %v", err)
		return err
	}

	return nil
}

func (bw *batchWriter) backgroundFlush() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bw.flush(); err != nil {
				log.Printf("barstore: background flush error: %v", err)
			}
		case <-bw.done:
			if err := bw.flush(); err != nil {
				log.Printf("barstore: final flush error: %v", err)
			}
			return
		}
	}
}

// pending returns the number of buffered, not-yet-flushed operations.
func (bw *batchWriter) pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

func (bw *batchWriter) metricsSnapshot() batchWriterMetrics {
	return batchWriterMetrics{
		TotalWrites:   atomic.LoadUint64(&bw.metrics.TotalWrites),
		TotalBatches:  atomic.LoadUint64(&bw.metrics.TotalBatches),
		TotalErrors:   atomic.LoadUint64(&bw.metrics.TotalErrors),
		LastBatchSize: bw.metrics.LastBatchSize,
		LastFlushTime: bw.metrics.LastFlushTime,
	}
}

func (bw *batchWriter) close() error {
	close(bw.done)
	bw.wg.Wait()
	return nil
}
