package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"betfair_go/internal/domain"
	"betfair_go/internal/infra"
	"betfair_go/internal/infra/storage"

	"github.com/shopspring/decimal"
)

func setupService(t *testing.T) *ParseService {
	t.Helper()
	cfg := infra.DefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	return NewParseService(cfg, store, nil, nil)
}

func fixture(t *testing.T) []byte {
	t.Helper()
	content, err := os.ReadFile(filepath.Join("testdata", "sample.bz2"))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	return content
}

func TestParseUpload_EndToEnd(t *testing.T) {
	svc := setupService(t)

	resp, err := svc.ParseUpload(context.Background(), "sample.bz2", fixture(t))
	if err != nil {
		t.Fatalf("ParseUpload failed: %v", err)
	}

	if resp.FileMetadata.ProcessingStatus != "completed" {
		t.Errorf("unexpected status %q", resp.FileMetadata.ProcessingStatus)
	}
	if resp.ProcessingStats.TotalRecords != 4 {
		t.Errorf("expected 4 records, got %d", resp.ProcessingStats.TotalRecords)
	}
	if resp.ProcessingStats.DecompressedSizeBytes <= resp.ProcessingStats.CompressedSizeBytes {
		t.Error("decompressed size should exceed compressed size")
	}
	if len(resp.Markets) != 1 {
		t.Fatalf("expected 1 market, got %d", len(resp.Markets))
	}

	m := resp.Markets[0]
	if m.MarketID != "1.100" || m.MarketStatus != domain.MarketClosed || !m.InPlay {
		t.Errorf("unexpected market header: %+v", m)
	}
	if len(m.Runners) != 2 {
		t.Fatalf("expected 2 runners, got %d", len(m.Runners))
	}

	alpha := m.Runners[0]
	if alpha.Status != domain.RunnerWinner {
		t.Errorf("expected WINNER, got %s", alpha.Status)
	}
	if alpha.BSP == nil || alpha.BSP.ActualSP == nil || !alpha.BSP.ActualSP.Equal(decimal.RequireFromString("2.02")) {
		t.Errorf("bsp not finalized: %+v", alpha.BSP)
	}
	// Cumulative traded volume replaced, not summed.
	if len(alpha.EX.TradedVolume) != 1 || !alpha.EX.TradedVolume[0].Volume.Equal(decimal.NewFromInt(1400)) {
		t.Errorf("unexpected traded ladder: %v", alpha.EX.TradedVolume)
	}

	// Round-trips through the store.
	stored, err := svc.GetFile(resp.FileMetadata.FileID)
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if len(stored.Markets) != 1 || stored.Markets[0].MarketID != "1.100" {
		t.Errorf("stored payload mismatch: %+v", stored.Markets)
	}
}

func TestParseUpload_TruncatedArchiveFails(t *testing.T) {
	svc := setupService(t)

	full := fixture(t)
	_, err := svc.ParseUpload(context.Background(), "cut.bz2", full[:len(full)/2])
	if !errors.Is(err, domain.ErrStreamRead) {
		t.Fatalf("expected ErrStreamRead, got %v", err)
	}

	// The failure is recorded, not persisted as a completed parse.
	files, err := svc.ListFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Status != "failed" {
		t.Fatalf("expected one failed record, got %+v", files)
	}
	if files[0].ErrorMessage == "" {
		t.Error("failure cause not recorded")
	}
}

func TestParseUpload_RejectsNonBzip2(t *testing.T) {
	svc := setupService(t)

	_, err := svc.ParseUpload(context.Background(), "plain.txt", []byte(`{"op":"mcm"}`))
	if !errors.Is(err, domain.ErrNotBzip2) {
		t.Fatalf("expected ErrNotBzip2, got %v", err)
	}
}

func TestParseUpload_RejectsEmptyFile(t *testing.T) {
	svc := setupService(t)

	_, err := svc.ParseUpload(context.Background(), "empty.bz2", nil)
	if !errors.Is(err, domain.ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestParseUpload_RejectsOversizedFile(t *testing.T) {
	svc := setupService(t)
	svc.cfg.Server.MaxUploadMB = 1

	big := make([]byte, 2*1024*1024)
	copy(big, "BZ")
	_, err := svc.ParseUpload(context.Background(), "big.bz2", big)
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestDeleteFile_UnknownID(t *testing.T) {
	svc := setupService(t)

	if err := svc.DeleteFile("nope"); !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

// Replays of different files share no state and may run in parallel.
func TestParseUpload_ConcurrentFiles(t *testing.T) {
	svc := setupService(t)
	content := fixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ParseUpload(context.Background(), "sample.bz2", content)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("parse %d failed: %v", i, err)
		}
	}

	files, err := svc.ListFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 4 {
		t.Errorf("expected 4 stored files, got %d", len(files))
	}
}
