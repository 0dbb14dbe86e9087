package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/gcp"
)

// ReportStore persists reports for audit and returns where each one landed.
type ReportStore interface {
	Save(ctx context.Context, rep *Report) (string, error)
}

func encodeReport(rep *Report) ([]byte, error) {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(b, '\n'), nil
}

type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

func (s *FileStore) Save(_ context.Context, rep *Report) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	b, err := encodeReport(rep)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.dir, rep.ReportID+".json")
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return "", fmt.Errorf("rename report: %w", err)
	}
	return p, nil
}

type GCSStore struct {
	bucket gcp.BucketService
	prefix string
}

func NewGCSStore(bucket gcp.BucketService, prefix string) *GCSStore {
	return &GCSStore{bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *GCSStore) Save(ctx context.Context, rep *Report) (string, error) {
	b, err := encodeReport(rep)
	if err != nil {
		return "", err
	}
	key := rep.ReportID + ".json"
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	if err := s.bucket.UploadObject(ctx, key, bytes.NewReader(b)); err != nil {
		return "", err
	}
	return "gs://" + s.bucket.Bucket() + "/" + key, nil
}

type DBStore struct {
	repo repos.QualityReportRepo
}

func NewDBStore(repo repos.QualityReportRepo) *DBStore { return &DBStore{repo: repo} }

func (s *DBStore) Save(ctx context.Context, rep *Report) (string, error) {
	b, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	row := &nutrition.QualityReportRow{
		ReportID:  rep.ReportID,
		RunID:     rep.RunID,
		StartedAt: rep.StartedAt,
		Success:   rep.Success,
		Admitted:  rep.Admitted,
		Payload:   datatypes.JSON(b),
	}
	if err := s.repo.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return "", err
	}
	return nutrition.TableQualityReport + "/" + rep.ReportID, nil
}

// Decode parses a stored report payload.
func Decode(payload []byte) (*Report, error) {
	var rep Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rep, nil
}
