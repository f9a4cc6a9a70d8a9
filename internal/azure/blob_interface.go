package azure

import (
	"context"
)

// ReportStore keeps generated report documents
type ReportStore interface {
	UploadReport(ctx context.Context, filename string, data []byte) (string, error)
	DownloadReport(ctx context.Context, blobName string) ([]byte, error)
}

var (
	_ ReportStore = (*BlobStorageClient)(nil)
	_ ReportStore = (*MemoryReportStore)(nil)
)
