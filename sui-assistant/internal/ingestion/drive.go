package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Google Drive MIME types with special handling.
const (
	folderMimeType    = "application/vnd.google-apps.folder"
	googleDocMimeType = "application/vnd.google-apps.document"
)

var googleAPICallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "google_api_calls_total",
		Help: "Total number of Google Drive API calls",
	},
	[]string{"operation", "status"},
)

func init() {
	prometheus.MustRegister(googleAPICallsTotal)
}

// ErrNoDriveCredentials is returned when neither a credentials file nor an
// access token is configured.
var ErrNoDriveCredentials = errors.New("no Google Drive credentials configured")

// DriveFile is a file found under a Drive folder. Path is relative to the
// folder and uses slashes.
type DriveFile struct {
	ID       string
	Name     string
	MimeType string
	Path     string
}

// DriveSource lists and downloads documents from a Drive folder.
type DriveSource struct {
	svc      *drive.Service
	folderID string
}

// NewDriveService authenticates with a service account credentials file, or
// with a raw OAuth access token when no file is given.
func NewDriveService(ctx context.Context, credentialsFile, accessToken string) (*drive.Service, error) {
	switch {
	case credentialsFile != "":
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		jwt, err := google.JWTConfigFromJSON(data, drive.DriveReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		return drive.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	case accessToken != "":
		token := &oauth2.Token{AccessToken: accessToken}
		httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
		return drive.NewService(ctx, option.WithHTTPClient(httpClient))
	default:
		return nil, ErrNoDriveCredentials
	}
}

// NewDriveSource reads documents from folderID.
func NewDriveSource(svc *drive.Service, folderID string) *DriveSource {
	return &DriveSource{svc: svc, folderID: folderID}
}

// List walks the folder recursively and returns every supported file.
// Google Docs are included and exported as plain text on download.
func (d *DriveSource) List(ctx context.Context) ([]DriveFile, error) {
	return d.list(ctx, d.folderID, "")
}

func (d *DriveSource) list(ctx context.Context, folderID, prefix string) ([]DriveFile, error) {
	var out []DriveFile
	q := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	pageToken := ""
	for {
		call := d.svc.Files.List().
			Q(q).
			Fields("nextPageToken, files(id, name, mimeType)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			googleAPICallsTotal.WithLabelValues("list_files", "error").Inc()
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		googleAPICallsTotal.WithLabelValues("list_files", "success").Inc()

		for _, f := range resp.Files {
			rel := f.Name
			if prefix != "" {
				rel = prefix + "/" + f.Name
			}
			switch {
			case f.MimeType == folderMimeType:
				children, err := d.list(ctx, f.Id, rel)
				if err != nil {
					return nil, err
				}
				out = append(out, children...)
			case f.MimeType == googleDocMimeType:
				out = append(out, DriveFile{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Path: rel + ".txt"})
			case Supported(f.Name):
				out = append(out, DriveFile{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Path: rel})
			}
		}

		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Download writes f under dir, keeping its relative path, and returns the
// local file path.
func (d *DriveSource) Download(ctx context.Context, f DriveFile, dir string) (string, error) {
	dest := filepath.Join(dir, filepath.FromSlash(f.Path))
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid drive path %q", f.Path)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}

	op := "download_file"
	var body io.ReadCloser
	if f.MimeType == googleDocMimeType {
		op = "export_file"
		resp, err := d.svc.Files.Export(f.ID, "text/plain").Context(ctx).Download()
		if err != nil {
			googleAPICallsTotal.WithLabelValues(op, "error").Inc()
			return "", fmt.Errorf("export %s: %w", f.Name, err)
		}
		body = resp.Body
	} else {
		resp, err := d.svc.Files.Get(f.ID).Context(ctx).Download()
		if err != nil {
			googleAPICallsTotal.WithLabelValues(op, "error").Inc()
			return "", fmt.Errorf("download %s: %w", f.Name, err)
		}
		body = resp.Body
	}
	defer body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		googleAPICallsTotal.WithLabelValues(op, "error").Inc()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	googleAPICallsTotal.WithLabelValues(op, "success").Inc()
	return dest, nil
}
