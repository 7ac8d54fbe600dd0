package filestorage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"civicconnect_backend/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFileType is returned for uploads that are not jpeg, png, gif or webp images.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge is returned when an upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
)

var allowedExtensions = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".gif":  ".gif",
	".webp": ".webp",
}

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FileStorageService stores issue photos on the local filesystem.
type FileStorageService struct {
	storagePath string
	maxBytes    int64
	logger      *zap.Logger
}

// NewFileStorageService creates the storage root if needed.
func NewFileStorageService(cfg *config.Config, logger *zap.Logger) (*FileStorageService, error) {
	return New(cfg.UploadsDir, cfg.MaxUploadSizeMB<<20, logger)
}

// New creates a FileStorageService rooted at storagePath. maxBytes <= 0 disables the size limit.
func New(storagePath string, maxBytes int64, logger *zap.Logger) (*FileStorageService, error) {
	if storagePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		logger.Error("Failed to create storage path directory", zap.String("path", storagePath), zap.Error(err))
		return nil, fmt.Errorf("failed to create storage path %s: %w", storagePath, err)
	}
	logger.Info("FileStorageService initialized", zap.String("storagePath", storagePath))
	return &FileStorageService{storagePath: storagePath, maxBytes: maxBytes, logger: logger.Named("FileStorage")}, nil
}

// Root returns the directory files are stored under.
func (s *FileStorageService) Root() string {
	return s.storagePath
}

func resolveExtension(fileHeader *multipart.FileHeader) (string, error) {
	if ext, ok := allowedExtensions[strings.ToLower(filepath.Ext(fileHeader.Filename))]; ok {
		return ext, nil
	}
	contentType := fileHeader.Header.Get("Content-Type")
	for prefix, ext := range contentTypeExtensions {
		if strings.HasPrefix(contentType, prefix) {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, contentType)
}

// SaveUploadedFile writes the upload under subDir with a random name and returns the
// slash-separated path relative to the storage root, e.g. "issues/<uuid>.jpg".
func (s *FileStorageService) SaveUploadedFile(fileHeader *multipart.FileHeader, subDir string) (string, error) {
	if fileHeader == nil {
		return "", fmt.Errorf("fileHeader cannot be nil")
	}
	if s.maxBytes > 0 && fileHeader.Size > s.maxBytes {
		return "", ErrFileTooLarge
	}
	extension, err := resolveExtension(fileHeader)
	if err != nil {
		return "", err
	}

	cleanSubDir := filepath.Clean(subDir)
	if strings.HasPrefix(cleanSubDir, "..") || filepath.IsAbs(cleanSubDir) {
		s.logger.Error("Invalid subDir, attempts to leave storage root", zap.String("subDir", subDir))
		return "", fmt.Errorf("invalid subDir path")
	}

	src, err := fileHeader.Open()
	if err != nil {
		s.logger.Error("Failed to open uploaded file", zap.Error(err))
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	destinationDir := filepath.Join(s.storagePath, cleanSubDir)
	if err := os.MkdirAll(destinationDir, 0o755); err != nil {
		s.logger.Error("Failed to create sub-directory for file storage", zap.String("path", destinationDir), zap.Error(err))
		return "", fmt.Errorf("failed to create directory %s: %w", destinationDir, err)
	}

	uniqueFilename := uuid.NewString() + extension
	destinationPath := filepath.Join(destinationDir, uniqueFilename)

	dst, err := os.Create(destinationPath)
	if err != nil {
		s.logger.Error("Failed to create destination file", zap.String("path", destinationPath), zap.Error(err))
		return "", fmt.Errorf("failed to create file %s: %w", destinationPath, err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		s.logger.Error("Failed to copy uploaded file to destination", zap.String("path", destinationPath), zap.Error(err))
		_ = os.Remove(destinationPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.Debug("File saved", zap.String("path", destinationPath))
	return filepath.ToSlash(filepath.Join(cleanSubDir, uniqueFilename)), nil
}

// DeleteFile removes a file by its path relative to the storage root. A missing file is not an error.
func (s *FileStorageService) DeleteFile(relativePath string) error {
	if relativePath == "" {
		return fmt.Errorf("relative path cannot be empty")
	}

	cleanRelativePath := filepath.Clean(filepath.FromSlash(relativePath))
	if strings.Contains(cleanRelativePath, "..") || filepath.IsAbs(cleanRelativePath) {
		s.logger.Warn("Attempt to delete file with path traversal", zap.String("relativePath", relativePath))
		return fmt.Errorf("invalid file path for deletion")
	}

	fullPath := filepath.Join(s.storagePath, cleanRelativePath)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Attempt to delete non-existent file", zap.String("path", fullPath))
			return nil
		}
		s.logger.Error("Failed to delete file", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}

	s.logger.Debug("File deleted", zap.String("path", fullPath))
	return nil
}
