package repositories

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// FirebaseFileRepository stores uploads in the Firebase default bucket
type FirebaseFileRepository struct {
	bucket         *storage.BucketHandle
	previewBaseURL string
}

// NewFirebaseFileRepository creates a new FirebaseFileRepository. Previews are served
// by the image service at previewBaseURL.
func NewFirebaseFileRepository(bucket *storage.BucketHandle, previewBaseURL string) *FirebaseFileRepository {
	return &FirebaseFileRepository{bucket: bucket, previewBaseURL: strings.TrimRight(previewBaseURL, "/")}
}

// Upload writes a new object and returns its id
func (r *FirebaseFileRepository) Upload(ctx context.Context, upload *models.Upload) (*models.File, error) {
	id := uuid.NewString()
	w := r.bucket.Object(id).NewWriter(ctx)
	w.ContentType = upload.ContentType
	w.Metadata = map[string]string{"name": upload.Name}

	if _, err := w.Write(upload.Data); err != nil {
		w.Close()
		return nil, translateStorage(err)
	}
	if err := w.Close(); err != nil {
		return nil, translateStorage(err)
	}
	return &models.File{ID: id, Name: upload.Name, Size: int64(len(upload.Data))}, nil
}

// PreviewURL builds the resized preview address for a stored file
func (r *FirebaseFileRepository) PreviewURL(id string, width, height int, gravity string, quality int) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty file id", ErrNotFound)
	}
	if r.previewBaseURL == "" {
		return "", errors.New("preview base url not configured")
	}

	q := url.Values{}
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))
	q.Set("gravity", gravity)
	q.Set("quality", strconv.Itoa(quality))
	return fmt.Sprintf("%s/%s/preview?%s", r.previewBaseURL, url.PathEscape(id), q.Encode()), nil
}

// Delete removes a stored file
func (r *FirebaseFileRepository) Delete(ctx context.Context, id string) error {
	if err := r.bucket.Object(id).Delete(ctx); err != nil {
		return translateStorage(err)
	}
	return nil
}

func translateStorage(err error) error {
	var gerr *googleapi.Error
	switch {
	case errors.Is(err, storage.ErrObjectNotExist), errors.Is(err, storage.ErrBucketNotExist):
		return ErrNotFound
	case errors.As(err, &gerr) && gerr.Code == http.StatusNotFound:
		return ErrNotFound
	case errors.As(err, &gerr) && (gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests):
		return fmt.Errorf("%w: storage: %v", ErrUnavailable, err)
	default:
		return err
	}
}
