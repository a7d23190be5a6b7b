package service

import (
	"context"
	"log"
	"sync"
	"time"

	"insights-service/internal/model"
	"insights-service/internal/repository"
)

type batchEventWorker struct {
	repo          repository.EventRepository
	eventQueue    chan model.Event
	batchSize     int
	flushInterval time.Duration
	wg            sync.WaitGroup
}

type BatchEventWorker interface {
	Enqueue(event model.Event)
	Shutdown()
}

// NewbatchEventWorker starts the background flush loop immediately.
func NewbatchEventWorker(repo repository.EventRepository, bufferSize int, batchSize int, interval time.Duration) *batchEventWorker {
	worker := &batchEventWorker{
		repo:          repo,
		eventQueue:    make(chan model.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: interval,
	}
	worker.wg.Add(1)
	go worker.startLoop()
	return worker
}

// Enqueue hands an event to the worker. Blocks when the buffer is full.
func (w *batchEventWorker) Enqueue(event model.Event) {
	w.eventQueue <- event
}

// Shutdown stops intake and waits for the queue to drain.
func (w *batchEventWorker) Shutdown() {
	log.Println("worker shutting down, draining queue...")
	close(w.eventQueue)
	w.wg.Wait()
	log.Println("worker stopped")
}

func (w *batchEventWorker) startLoop() {
	defer w.wg.Done()

	var batch []model.Event
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.eventQueue:
			if !ok {
				// Channel closed by Shutdown, flush the remainder and exit.
				if len(batch) > 0 {
					w.bulkInsert(batch)
				}
				return
			}

			batch = append(batch, event)

			if len(batch) >= w.batchSize {
				w.bulkInsert(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.bulkInsert(batch)
				batch = nil
			}
		}
	}
}

func (w *batchEventWorker) bulkInsert(events []model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.repo.CreateBatch(ctx, events); err != nil {
		log.Printf("[ERROR] bulk insert failed: %v", err)
		return
	}
	log.Printf("[INFO] %d events flushed", len(events))
}
