package object

import (
	"context"
	"fmt"
	"io"
	"path"

	"resume-pdf-api/internal/shared/util"
)

// ContentTypePDF is the content type of generated resumes.
const ContentTypePDF = "application/pdf"

// ObjectStore defines the contract for saving and retrieving binary objects.
// Put overwrites any object already stored at key and returns a URL the object can be fetched from.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// PDFKey returns the deterministic key for a job's PDF.
func PDFKey(tenantID, jobID string) (string, error) {
	tenant, err := util.SanitizeKeySegment(tenantID)
	if err != nil {
		return "", fmt.Errorf("tenant id: %w", err)
	}
	job, err := util.SanitizeKeySegment(jobID)
	if err != nil {
		return "", fmt.Errorf("job id: %w", err)
	}
	return path.Join("resumes", tenant, job+".pdf"), nil
}
