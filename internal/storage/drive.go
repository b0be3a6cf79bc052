package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/models"
)

const driveListFields = "nextPageToken, files(id, name, mimeType)"

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Drive implements Provider on top of the Google Drive v3 files.list call.
type Drive struct {
	svc *drive.Service
}

// NewDrive creates a read-only Drive provider from a service-account credentials file.
func NewDrive(ctx context.Context, credentialsFile string) (*Drive, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCredential, err)
	}
	return NewDriveWithOptions(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
}

// NewDriveWithOptions creates a Drive provider with explicit client options.
func NewDriveWithOptions(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCredential, err)
	}
	return &Drive{svc: svc}, nil
}

// ListPage lists one page of non-trashed images directly under folderID.
func (d *Drive) ListPage(ctx context.Context, folderID, pageToken string, pageSize int) (*Page, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false",
		queryEscaper.Replace(folderID))

	call := d.svc.Files.List().
		Q(q).
		Fields(driveListFields).
		PageSize(int64(pageSize)).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Do()
	if err != nil {
		return nil, classifyDriveError(err)
	}

	page := &Page{
		Entries:       make([]models.FileEntry, 0, len(res.Files)),
		NextPageToken: res.NextPageToken,
	}
	for _, f := range res.Files {
		page.Entries = append(page.Entries, models.FileEntry{
			ID:       f.Id,
			Name:     f.Name,
			MimeType: f.MimeType,
		})
	}
	return page, nil
}

// Reasons Drive attaches to 403 and 429 responses that ask the caller to back off.
var driveRetryReasons = map[string]bool{
	"userRateLimitExceeded":    true,
	"rateLimitExceeded":        true,
	"sharingRateLimitExceeded": true,
}

// classifyDriveError maps auth failures to ErrCredential and a missing folder to
// ErrFolderMissing. Rate limits and everything else are returned plain and
// treated as retryable.
func classifyDriveError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests, rateLimited(gerr):
			return fmt.Errorf("drive: rate limited: %w", err)
		case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: drive: %v", apperr.ErrCredential, err)
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: drive: %v", apperr.ErrFolderMissing, err)
		}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: token: %v", apperr.ErrCredential, err)
	}
	return fmt.Errorf("drive: list: %w", err)
}

func rateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if driveRetryReasons[item.Reason] {
			return true
		}
	}
	return false
}
