// Package analytics tracks search and ingestion events and ships them to
// Kafka in batches for offline analysis.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blackroad/searchcore/pkg/kafka"
)

// EventType classifies an analytics event.
type EventType string

const (
	EventSearch     EventType = "search"
	EventIngest     EventType = "ingest"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent is the payload published for every executed query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	IndexUID  string    `json:"index_uid"`
	Query     string    `json:"query"`
	Total     int       `json:"total"`
	Returned  int       `json:"returned"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// IngestEvent is the payload published after a document batch is ingested.
type IngestEvent struct {
	Type      EventType `json:"type"`
	IndexUID  string    `json:"index_uid"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Collector buffers analytics events in memory and flushes them to Kafka
// when the buffer fills or on a fixed interval. Track never blocks the
// request path; events are dropped when the buffer is full.
type Collector struct {
	producer      *kafka.Producer
	mu            sync.Mutex
	buffer        []kafka.Event
	maxBuffer     int
	flushInterval time.Duration
	logger        *slog.Logger
	dropped       int64
	done          chan struct{}
}

// NewCollector creates a Collector with the given buffer capacity.
func NewCollector(producer *kafka.Producer, maxBuffer int) *Collector {
	if maxBuffer <= 0 {
		maxBuffer = 1000
	}
	return &Collector{
		producer:      producer,
		buffer:        make([]kafka.Event, 0, maxBuffer),
		maxBuffer:     maxBuffer,
		flushInterval: 5 * time.Second,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which stops when ctx is
// cancelled after one final flush.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
}

// TrackSearch buffers a search event.
func (c *Collector) TrackSearch(ev SearchEvent) {
	c.track(kafka.Event{Key: ev.IndexUID, Value: ev})
}

// TrackIngest buffers an ingestion event.
func (c *Collector) TrackIngest(ev IngestEvent) {
	c.track(kafka.Event{Key: ev.IndexUID, Value: ev})
}

func (c *Collector) track(ev kafka.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buffer) >= c.maxBuffer {
		c.dropped++
		return
	}
	c.buffer = append(c.buffer, ev)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.maxBuffer)
	dropped := c.dropped
	c.dropped = 0
	c.mu.Unlock()

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("flushing analytics events failed",
			"count", len(batch),
			"error", err,
		)
		return
	}
	c.logger.Debug("analytics events flushed", "count", len(batch), "dropped", dropped)
}

// Close waits for the flush loop to finish and closes the producer.
func (c *Collector) Close() error {
	<-c.done
	return c.producer.Close()
}
