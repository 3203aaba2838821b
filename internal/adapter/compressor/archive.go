package compressor

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// ArchiveDir writes sourceDir as a gzip-compressed tar to destPath. Entry
// names are relative to sourceDir.
func (g *GzipCompressor) ArchiveDir(sourceDir, destPath string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", sourceDir)
	}

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	gzipWriter, err := gzip.NewWriterLevel(destFile, g.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tarWriter := tar.NewWriter(gzipWriter)

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() && !fi.IsDir() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if fi.IsDir() {
			hdr.Name += "/"
		}
		if err := tarWriter.WriteHeader(hdr); err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tarWriter, f)
		return err
	})
	if walkErr != nil {
		tarWriter.Close()
		gzipWriter.Close()
		return fmt.Errorf("failed to archive %s: %w", sourceDir, walkErr)
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return destFile.Close()
}

// ArchiveStats summarises a tar.gz archive.
type ArchiveStats struct {
	Files        int
	Directories  int
	ContentBytes int64
}

// InspectArchive reads the whole archive, failing on any corruption.
func InspectArchive(path string) (ArchiveStats, error) {
	var stats ArchiveStats

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return stats, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read archive entry: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			stats.Directories++
		case tar.TypeReg:
			n, err := io.Copy(io.Discard, tr)
			if err != nil {
				return stats, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
			}
			stats.Files++
			stats.ContentBytes += n
		}
	}
}
