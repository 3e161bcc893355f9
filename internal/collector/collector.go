// Package collector gathers transcript records from the output directory of
// every worker pod over remote shell sessions.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"incidentetl/internal/logger"
	"incidentetl/internal/models"
	"incidentetl/internal/pods"
)

// DefaultWorkers is the default number of pods processed at once.
const DefaultWorkers = 8

// RemoteFileLister lists remote files matching a shell glob.
type RemoteFileLister interface {
	ListFiles(ctx context.Context, pattern string) ([]string, error)
}

// RemoteFileReader reads the contents of a remote file.
type RemoteFileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Session is an open remote session on one pod endpoint.
type Session interface {
	RemoteFileLister
	RemoteFileReader
	io.Closer
}

// Dialer opens sessions to pod endpoints.
type Dialer interface {
	Dial(ctx context.Context, endpoint pods.Port) (Session, error)
}

// Collector fetches records from pods concurrently.
type Collector struct {
	dialer  Dialer
	glob    string
	workers int
	logger  *logger.Logger
}

// New creates a collector that reads files matching glob on every pod.
func New(dialer Dialer, glob string, workers int, log *logger.Logger) *Collector {
	if workers < 1 {
		workers = DefaultWorkers
	}

	return &Collector{
		dialer:  dialer,
		glob:    glob,
		workers: workers,
		logger:  log,
	}
}

// Collect returns the union of the records found on all pods. Failures on a
// single file or endpoint are logged and skipped; the only error returned is
// the context's.
func (c *Collector) Collect(ctx context.Context, podList []pods.Pod) ([]models.TranscriptRecord, error) {
	results := make([][]models.TranscriptRecord, len(podList))

	var g errgroup.Group
	g.SetLimit(c.workers)

	for i, pod := range podList {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			results[i] = c.fetchPod(ctx, pod)
			c.logger.Debug("Fetched records from a pod", "pod", pod.Name, "records", len(results[i]))

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}

	all := make([]models.TranscriptRecord, 0, total)
	for _, r := range results {
		all = append(all, r...)
	}

	return all, nil
}

func (c *Collector) fetchPod(ctx context.Context, pod pods.Pod) []models.TranscriptRecord {
	var records []models.TranscriptRecord

	for _, ep := range pod.SSHEndpoints() {
		found, err := c.fetchEndpoint(ctx, pod, ep)
		if err != nil {
			c.logger.Error("Failed to read from pod", "pod", pod.Name, "endpoint", ep.Address(), "error", err)
			continue
		}

		records = append(records, found...)
	}

	return records
}

func (c *Collector) fetchEndpoint(ctx context.Context, pod pods.Pod, ep pods.Port) ([]models.TranscriptRecord, error) {
	sess, err := c.dialer.Dial(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			c.logger.Debug("Failed to close session", "pod", pod.Name, "error", closeErr)
		}
	}()

	files, err := sess.ListFiles(ctx, c.glob)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.glob, err)
	}

	var records []models.TranscriptRecord

	for _, file := range files {
		data, err := sess.ReadFile(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			c.logger.Warn("Failed to read file", "pod", pod.Name, "file", file, "error", err)
			continue
		}

		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}

		var fileRecords []models.TranscriptRecord
		if err := json.Unmarshal(data, &fileRecords); err != nil {
			c.logger.Warn("JSON decode error", "pod", pod.Name, "file", file, "error", err)
			continue
		}

		records = append(records, fileRecords...)
	}

	return records, nil
}
