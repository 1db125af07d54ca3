package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
)

const (
	openTimeout = 10 * time.Second
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Logger receives asynchronous write failures. Compatible with slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
}

// Writer records device usage history in one InfluxDB bucket.
//
// Points are batched by the client library and written in the background.
// A failed batch is logged, never retried. A Writer that is closed, or the
// zero Writer, silently drops every point.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string
	logger   Logger

	closed atomic.Bool
	done   chan struct{}
}

// Open connects to InfluxDB, checks that the server answers a ping, and
// starts the batching write API for cfg.Bucket.
//
// Returns ErrDisabled when cfg.Enabled is false and ErrConnectionFailed when
// the server is unreachable or reports itself unhealthy.
func Open(cfg config.InfluxDBConfig, logger Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	w := &Writer{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go w.logWriteErrors(w.writeAPI.Errors())
	return w, nil
}

// writeOptions sizes batches for usage traffic: a handful of points per
// status change, flushed at least every FlushInterval seconds.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := uint(defaultFlushInterval)
	if cfg.FlushInterval > 0 {
		flush = uint(cfg.FlushInterval)
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(flush * uint(time.Second/time.Millisecond))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// logWriteErrors drains the write API's error channel until Close.
func (w *Writer) logWriteErrors(errs <-chan error) {
	for {
		select {
		case err := <-errs:
			if w.logger != nil {
				w.logger.Error("usage history write failed", "bucket", w.bucket, "error", err)
			}
		case <-w.done:
			return
		}
	}
}

// HealthCheck pings the server. It is registered as a readiness check when
// history is enabled.
func (w *Writer) HealthCheck(ctx context.Context) error {
	if w.client == nil || w.closed.Load() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, w.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Close flushes buffered points and releases the client. Safe to call more
// than once.
func (w *Writer) Close() error {
	if w.client == nil || !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.writeAPI.Flush()
	close(w.done)
	w.client.Close()
	return nil
}
