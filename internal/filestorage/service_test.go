package filestorage

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupFileStorageService(t *testing.T, maxBytes int64) (*FileStorageService, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "uploads")
	fsService, err := New(root, maxBytes, zap.NewNop())
	require.NoError(t, err)
	return fsService, root
}

// newTestFileHeader builds a FileHeader the same way gin does when parsing a multipart body.
func newTestFileHeader(t *testing.T, fieldname, filename, content, contentType string) *multipart.FileHeader {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldname, filename))
	if contentType != "" {
		partHeader.Set("Content-Type", contentType)
	}

	part, err := writer.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)

	files := form.File[fieldname]
	require.NotEmpty(t, files, "No files found for fieldname %s", fieldname)
	return files[0]
}

func TestSaveUploadedFile_Success(t *testing.T) {
	fsService, root := setupFileStorageService(t, 0)

	fh := newTestFileHeader(t, "photo", "pothole.JPEG", "jpeg bytes", "image/jpeg")
	relativePath, err := fsService.SaveUploadedFile(fh, "issues")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(relativePath, "issues/"))
	assert.True(t, strings.HasSuffix(relativePath, ".jpg"))

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relativePath)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(content))
}

func TestSaveUploadedFile_ExtensionFromContentType(t *testing.T) {
	fsService, _ := setupFileStorageService(t, 0)

	fh := newTestFileHeader(t, "photo", "snapshot", "png bytes", "image/png")
	relativePath, err := fsService.SaveUploadedFile(fh, "issues")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(relativePath, ".png"))
}

func TestSaveUploadedFile_Rejections(t *testing.T) {
	fsService, _ := setupFileStorageService(t, 4)

	_, err := fsService.SaveUploadedFile(newTestFileHeader(t, "photo", "notes.txt", "x", "text/plain"), "issues")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	_, err = fsService.SaveUploadedFile(newTestFileHeader(t, "photo", "big.png", "too large", "image/png"), "issues")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = fsService.SaveUploadedFile(newTestFileHeader(t, "photo", "a.png", "ok", "image/png"), "../escape")
	assert.Error(t, err)

	_, err = fsService.SaveUploadedFile(nil, "issues")
	assert.EqualError(t, err, "fileHeader cannot be nil")
}

func TestDeleteFile(t *testing.T) {
	fsService, root := setupFileStorageService(t, 0)

	relativePath, err := fsService.SaveUploadedFile(newTestFileHeader(t, "photo", "a.gif", "gif", "image/gif"), "issues")
	require.NoError(t, err)

	require.NoError(t, fsService.DeleteFile(relativePath))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(relativePath)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, fsService.DeleteFile("issues/never-existed.jpg"))
}

func TestDeleteFile_PathTraversal(t *testing.T) {
	fsService, root := setupFileStorageService(t, 0)

	outside := filepath.Join(filepath.Dir(root), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	err := fsService.DeleteFile("../outside.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file path for deletion")

	_, statErr := os.Stat(outside)
	assert.NoError(t, statErr)
}
