// Package drive writes blobs as plain-text files into a Google Drive folder.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const mimeType = "text/plain"

// Config identifies the destination folder.
type Config struct {
	FolderID string
}

// BlobStore uploads one Drive file per blob. Names are not deduplicated: a
// second write with the same name creates a second file.
type BlobStore struct {
	files    *gdrive.FilesService
	folderID string
	logger   *zap.Logger
}

// New dials the Drive API.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*BlobStore, error) {
	if strings.TrimSpace(cfg.FolderID) == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}
	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{files: svc.Files, folderID: cfg.FolderID, logger: logger}, nil
}

// WriteBlob creates name in the folder with content as its body.
func (s *BlobStore) WriteBlob(ctx context.Context, name string, content []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("blob name is required")
	}
	meta := &gdrive.File{
		Name:     name,
		Parents:  []string{s.folderID},
		MimeType: mimeType,
	}
	created, err := s.files.Create(meta).
		Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("create drive file %s: %w", name, err)
	}
	s.logger.Debug("drive file created", zap.String("name", name), zap.String("file_id", created.Id))
	return nil
}
