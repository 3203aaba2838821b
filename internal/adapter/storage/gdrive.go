package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/custos/internal/config"
)

// GDriveStorage mirrors artifacts into one Drive folder. Only files whose
// name contains marker are listed or pruned, so engines sharing a folder do
// not touch each other's files.
type GDriveStorage struct {
	service  *drive.Service
	folderID string
	marker   string
}

// NewGDrive authenticates with a service account credentials file, or with
// an OAuth client plus refresh token when one is configured.
func NewGDrive(ctx context.Context, cfg *config.MirrorTarget, oauthCfg *oauth2.Config, marker string) (*GDriveStorage, error) {
	var opt option.ClientOption
	switch {
	case cfg.RefreshToken != "" && oauthCfg != nil:
		src := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		opt = option.WithTokenSource(src)
	case cfg.CredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("gdrive: credentials_file or refresh_token is required")
	}

	service, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
		marker:   marker,
	}, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func (g *GDriveStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileMetadata := &drive.File{
		Name:    remoteName,
		Parents: []string{g.folderID},
	}

	if _, err := g.service.Files.Create(fileMetadata).Media(file).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}

func (g *GDriveStorage) List(ctx context.Context) ([]string, error) {
	return g.query(ctx, "")
}

func (g *GDriveStorage) Delete(ctx context.Context, remoteName string) error {
	q := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false",
		escapeQuery(g.folderID), escapeQuery(remoteName))

	fileList, err := g.service.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to find file: %w", err)
	}
	if len(fileList.Files) == 0 {
		return fmt.Errorf("file not found: %s", remoteName)
	}

	if err := g.service.Files.Delete(fileList.Files[0].Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func (g *GDriveStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	return g.query(ctx, fmt.Sprintf(" and createdTime < '%s'", cutoffTime.UTC().Format(time.RFC3339)))
}

func (g *GDriveStorage) query(ctx context.Context, extra string) ([]string, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(g.folderID))
	if g.marker != "" {
		q += fmt.Sprintf(" and name contains '%s'", escapeQuery(g.marker))
	}
	q += extra

	var files []string
	err := g.service.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, file := range page.Files {
				if g.marker == "" || strings.Contains(file.Name, g.marker) {
					files = append(files, file.Name)
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}
