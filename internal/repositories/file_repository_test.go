package repositories

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestPreviewURL(t *testing.T) {
	r := NewFirebaseFileRepository(nil, "https://img.example.com/")

	u, err := r.PreviewURL("abc", 2000, 2000, "top", 100)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/abc/preview?gravity=top&height=2000&quality=100&width=2000", u)

	_, err = r.PreviewURL("", 2000, 2000, "top", 100)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewFirebaseFileRepository(nil, "").PreviewURL("abc", 1, 1, "top", 1)
	assert.Error(t, err)
}

func TestTranslateStorage(t *testing.T) {
	assert.ErrorIs(t, translateStorage(fmt.Errorf("delete: %w", storage.ErrObjectNotExist)), ErrNotFound)
	assert.ErrorIs(t, translateStorage(&googleapi.Error{Code: http.StatusNotFound}), ErrNotFound)
	assert.ErrorIs(t, translateStorage(&googleapi.Error{Code: http.StatusServiceUnavailable}), ErrUnavailable)

	other := errors.New("boom")
	assert.Equal(t, other, translateStorage(other))
}
