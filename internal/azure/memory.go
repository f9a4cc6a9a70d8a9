package azure

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemoryReportStore keeps reports in process memory. It stands in for blob
// storage in local runs without Azure credentials and in tests.
type MemoryReportStore struct {
	mu      sync.RWMutex
	storage map[string][]byte
	logger  *zap.Logger
}

// NewMemoryReportStore creates an empty in-memory store
func NewMemoryReportStore(logger *zap.Logger) *MemoryReportStore {
	return &MemoryReportStore{
		storage: make(map[string][]byte),
		logger:  logger,
	}
}

// UploadReport stores a copy of data
func (s *MemoryReportStore) UploadReport(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	blobName, err := reportBlobName(filename)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.storage[blobName] = bytes.Clone(data)
	s.mu.Unlock()

	s.logger.Debug("report stored in memory",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)
	return blobName, nil
}

// DownloadReport returns a copy of a stored report
func (s *MemoryReportStore) DownloadReport(ctx context.Context, blobName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.storage[blobName]
	if !exists {
		return nil, fmt.Errorf("blob not found: %s", blobName)
	}
	return bytes.Clone(data), nil
}

// List returns the stored blob names in order
func (s *MemoryReportStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.storage))
	for name := range s.storage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
