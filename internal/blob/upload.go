package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/safefind/safefind/internal/constants"
)

// ExpandTemplate fills the {author} and {uuid} placeholders of a storage path template.
// Path separators in author are replaced so an author cannot escape their folder.
func ExpandTemplate(template, author, id string) string {
	author = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(author))
	if author == "" {
		author = "anonymous"
	}
	return strings.NewReplacer("{author}", author, "{uuid}", id).Replace(template)
}

// UploadImage stores a normalized JPEG under a fresh key built from template
// and returns its reference.
func UploadImage(ctx context.Context, store Uploader, template, author string, data []byte) (string, error) {
	if template == "" {
		return "", errors.New("storage path template is required")
	}
	key := ExpandTemplate(template, author, uuid.NewString())
	ref, err := store.Upload(ctx, key, data, constants.NormalizedContentType)
	if err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}
	return ref, nil
}
