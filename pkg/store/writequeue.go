package store

import (
	"context"
	"log/slog"

	"github.com/yourusername/report-export-app/pkg/model"
)

// writeOpType defines the type of write operation.
type writeOpType int

const (
	opCreateBatch writeOpType = iota
	opUpdateBatch
	opCreateBatchItem
)

// writeOp represents a single write operation with its response channel.
type writeOp struct {
	opType   writeOpType
	data     interface{}
	response chan writeResult
}

// writeResult contains the result of a write operation.
type writeResult struct {
	err error
	id  int64
}

// writeQueue serializes database writes through one goroutine.
type writeQueue struct {
	queue  chan writeOp
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// newWriteQueue creates and starts a new write queue.
func newWriteQueue(db *Store) *writeQueue {
	ctx, cancel := context.WithCancel(context.Background())
	wq := &writeQueue{
		queue:  make(chan writeOp, 100),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go wq.processQueue(db)
	return wq
}

// processQueue is the single writer goroutine.
func (wq *writeQueue) processQueue(db *Store) {
	defer close(wq.done)

	for {
		select {
		case <-wq.ctx.Done():
			// Drain remaining operations before shutting down.
			for {
				select {
				case op := <-wq.queue:
					wq.executeOp(db, op)
				default:
					slog.Info("store: write queue shutdown complete")
					return
				}
			}

		case op := <-wq.queue:
			wq.executeOp(db, op)
		}
	}
}

// executeOp executes a single write operation.
func (wq *writeQueue) executeOp(db *Store, op writeOp) {
	var result writeResult

	switch op.opType {
	case opCreateBatch:
		batch := op.data.(*model.Batch)
		result.err = db.createBatchDirect(batch)
		result.id = batch.ID

	case opUpdateBatch:
		batch := op.data.(*model.Batch)
		result.err = db.updateBatchDirect(batch)

	case opCreateBatchItem:
		item := op.data.(*model.BatchItem)
		result.err = db.createBatchItemDirect(item)
		result.id = item.ID
	}

	op.response <- result
}

// enqueue adds a write operation to the queue and waits for the result.
func (wq *writeQueue) enqueue(opType writeOpType, data interface{}) error {
	response := make(chan writeResult, 1)

	op := writeOp{
		opType:   opType,
		data:     data,
		response: response,
	}

	select {
	case wq.queue <- op:
	case <-wq.ctx.Done():
		return wq.ctx.Err()
	}

	select {
	case result := <-response:
		return result.err
	case <-wq.ctx.Done():
		return wq.ctx.Err()
	}
}

// shutdown gracefully stops the write queue after draining pending writes.
func (wq *writeQueue) shutdown() {
	wq.cancel()
	<-wq.done
}
