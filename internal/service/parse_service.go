package service

import (
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"betfair_go/internal/domain"
	"betfair_go/internal/engine"
	"betfair_go/internal/infra"
	"betfair_go/internal/infra/storage"

	"github.com/google/uuid"
)

// progressInterval is how many records pass between progress
// publications during a replay.
const progressInterval = 1000

// ProgressUpdate is one progress notification for an uploaded file.
type ProgressUpdate struct {
	FileID  string `json:"file_id"`
	Status  string `json:"status"` // parsing, completed, failed
	Records int    `json:"records"`
	Markets int    `json:"markets"`
	Error   string `json:"error,omitempty"`
}

// ProgressSink receives progress updates; the websocket hub implements
// it. A nil sink disables progress reporting.
type ProgressSink interface {
	Publish(update ProgressUpdate)
}

// ParseService owns the upload-to-snapshot pipeline: sniff, decompress,
// replay, extract, persist. Parses of different files run independently
// and in parallel up to a bounded worker count; no state is shared
// between two replays.
type ParseService struct {
	cfg      *infra.Config
	store    *storage.Storage
	progress ProgressSink
	sem      chan struct{}
	logger   *slog.Logger
}

// NewParseService creates the service. progress may be nil.
func NewParseService(cfg *infra.Config, store *storage.Storage, progress ProgressSink, logger *slog.Logger) *ParseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseService{
		cfg:      cfg,
		store:    store,
		progress: progress,
		sem:      make(chan struct{}, cfg.Replay.MaxParallelParses),
		logger:   logger,
	}
}

// countingReader counts decompressed bytes as the replay consumes them,
// so the stream is never buffered twice.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ParseUpload validates, decompresses and replays one uploaded capture
// file, persists the result and returns the full parse response.
func (s *ParseService) ParseUpload(ctx context.Context, fileName string, content []byte) (*domain.FileParseResponse, error) {
	if len(content) == 0 {
		return nil, domain.ErrEmptyFile
	}
	if int64(len(content)) > int64(s.cfg.Server.MaxUploadMB)*1024*1024 {
		return nil, domain.ErrFileTooLarge
	}
	if !bytes.HasPrefix(content, []byte("BZ")) {
		return nil, domain.ErrNotBzip2
	}

	// Bounded parallelism across files.
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	fileID := uuid.NewString()
	uploadTime := time.Now().UTC()
	start := time.Now()

	s.publish(ProgressUpdate{FileID: fileID, Status: "parsing"})

	counter := &countingReader{r: bzip2.NewReader(bytes.NewReader(content))}
	driver := engine.NewDriver(engine.Options{
		Policy:        s.anomalyPolicy(),
		LayOrder:      s.layOrder(),
		SnapshotEvery: s.cfg.Replay.SnapshotEvery,
		OnProgress: func(records int) {
			if records%progressInterval == 0 {
				s.publish(ProgressUpdate{FileID: fileID, Status: "parsing", Records: records})
			}
		},
		Logger: s.logger.With(slog.String("file_id", fileID)),
	})

	res, err := driver.Replay(ctx, engine.NewLineSource(counter))
	if err != nil {
		s.recordFailure(fileID, fileName, uploadTime, int64(len(content)), err)
		return nil, fmt.Errorf("replay failed: %w", err)
	}
	if res.Stats.Applied == 0 {
		err := domain.ErrNoRecords
		s.recordFailure(fileID, fileName, uploadTime, int64(len(content)), err)
		return nil, err
	}

	markets := engine.ExtractMarkets(res.Table, engine.ExtractOptions{MaxDepth: s.cfg.Replay.MaxLadderDepth})

	totalRunners := 0
	for _, m := range markets {
		totalRunners += len(m.Runners)
	}

	processedAt := time.Now().UTC()
	resp := &domain.FileParseResponse{
		FileMetadata: domain.FileMetadata{
			FileID:           fileID,
			FileName:         fileName,
			SizeBytes:        int64(len(content)),
			UploadTime:       uploadTime,
			ProcessingStatus: "completed",
			ProcessedAt:      &processedAt,
		},
		Markets: markets,
		ProcessingStats: domain.ProcessingStats{
			TotalRecords:          res.Stats.Records,
			TotalRunners:          totalRunners,
			ProcessingTimeMS:      time.Since(start).Milliseconds(),
			CompressedSizeBytes:   int64(len(content)),
			DecompressedSizeBytes: counter.n,
			MalformedRecords:      res.Stats.Malformed,
			SequenceAnomalies:     res.Stats.SequenceAnomalies,
			InvalidTransitions:    res.Stats.InvalidTransitions,
			LadderViolations:      res.Stats.LadderViolations,
		},
	}

	if err := s.persist(resp); err != nil {
		return nil, fmt.Errorf("persist parse result: %w", err)
	}

	s.observe(res.Stats, time.Since(start), "completed")
	s.publish(ProgressUpdate{FileID: fileID, Status: "completed", Records: res.Stats.Records, Markets: len(markets)})
	s.logger.Info("file parsed",
		slog.String("file_id", fileID),
		slog.String("file_name", fileName),
		slog.Int("records", res.Stats.Records),
		slog.Int("markets", len(markets)),
		slog.Int("diagnostics", len(res.Diagnostics)))
	return resp, nil
}

// GetFile loads one parse result by id.
func (s *ParseService) GetFile(fileID string) (*domain.FileParseResponse, error) {
	f, err := s.store.GetFile(fileID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.ErrFileNotFound
	}
	var resp domain.FileParseResponse
	if err := json.Unmarshal(f.Payload, &resp); err != nil {
		return nil, fmt.Errorf("decode stored payload: %w", err)
	}
	return &resp, nil
}

// ListFiles returns metadata for all stored files.
func (s *ParseService) ListFiles() ([]domain.ParsedFile, error) {
	return s.store.ListFiles()
}

// DeleteFile removes a stored file.
func (s *ParseService) DeleteFile(fileID string) error {
	f, err := s.store.GetFile(fileID)
	if err != nil {
		return err
	}
	if f == nil {
		return domain.ErrFileNotFound
	}
	return s.store.DeleteFile(fileID)
}

// CountFiles returns how many files the store holds.
func (s *ParseService) CountFiles() (int64, error) {
	return s.store.CountFiles()
}

// Ping reports storage health.
func (s *ParseService) Ping() error {
	return s.store.Ping()
}

func (s *ParseService) persist(resp *domain.FileParseResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.store.SaveFile(&domain.ParsedFile{
		FileID:       resp.FileMetadata.FileID,
		FileName:     resp.FileMetadata.FileName,
		SizeBytes:    resp.FileMetadata.SizeBytes,
		UploadTime:   resp.FileMetadata.UploadTime,
		Status:       resp.FileMetadata.ProcessingStatus,
		ProcessedAt:  resp.FileMetadata.ProcessedAt,
		TotalMarkets: len(resp.Markets),
		TotalRunners: resp.ProcessingStats.TotalRunners,
		Payload:      payload,
	})
}

func (s *ParseService) recordFailure(fileID, fileName string, uploadTime time.Time, size int64, cause error) {
	infra.FilesParsed.WithLabelValues("failed").Inc()
	s.publish(ProgressUpdate{FileID: fileID, Status: "failed", Error: cause.Error()})
	err := s.store.SaveFile(&domain.ParsedFile{
		FileID:       fileID,
		FileName:     fileName,
		SizeBytes:    size,
		UploadTime:   uploadTime,
		Status:       "failed",
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		s.logger.Error("failed to record parse failure", slog.String("file_id", fileID), slog.Any("error", err))
	}
}

func (s *ParseService) observe(stats engine.ReplayStats, elapsed time.Duration, status string) {
	infra.RecordsProcessed.Add(float64(stats.Records))
	infra.ReplayDiagnostics.WithLabelValues(string(engine.DiagMalformed)).Add(float64(stats.Malformed))
	infra.ReplayDiagnostics.WithLabelValues(string(engine.DiagSequenceAnomaly)).Add(float64(stats.SequenceAnomalies))
	infra.ReplayDiagnostics.WithLabelValues(string(engine.DiagInvalidTransition)).Add(float64(stats.InvalidTransitions))
	infra.ReplayDiagnostics.WithLabelValues(string(engine.DiagLadderViolation)).Add(float64(stats.LadderViolations))
	infra.FilesParsed.WithLabelValues(status).Inc()
	infra.ParseDuration.Observe(elapsed.Seconds())
}

func (s *ParseService) publish(u ProgressUpdate) {
	if s.progress != nil {
		s.progress.Publish(u)
	}
}

func (s *ParseService) anomalyPolicy() engine.AnomalyPolicy {
	if s.cfg.Replay.OnSequenceAnomaly == "abort" {
		return engine.AbortOnAnomaly
	}
	return engine.SkipOnAnomaly
}

func (s *ParseService) layOrder() domain.SortOrder {
	// Best lay first is the lowest lay price first, i.e. ascending;
	// descending mirrors the back-column display instead.
	if s.cfg.Replay.LayLadderOrder == "descending" {
		return domain.Descending
	}
	return domain.Ascending
}
