package compressor

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestArchiveDir(t *testing.T) {
	Convey("Given a graph database directory", t, func() {
		tempDir, err := os.MkdirTemp("", "archive_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		dbDir := filepath.Join(tempDir, "graph.kuzu")
		So(os.MkdirAll(filepath.Join(dbDir, "wal"), 0755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dbDir, "catalog.kz"), []byte("catalog"), 0644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dbDir, "wal", "0001"), []byte("wal-segment"), 0644), ShouldBeNil)

		compressor := NewGzip()
		dest := filepath.Join(tempDir, "graph.tar.gz")

		Convey("ArchiveDir", func() {
			Convey("When archiving the directory", func() {
				err := compressor.ArchiveDir(dbDir, dest)

				Convey("It should produce an archive InspectArchive can read", func() {
					So(err, ShouldBeNil)
					stats, err := InspectArchive(dest)
					So(err, ShouldBeNil)
					So(stats.Files, ShouldEqual, 2)
					So(stats.Directories, ShouldEqual, 1)
					So(stats.ContentBytes, ShouldEqual, int64(len("catalog")+len("wal-segment")))
				})
			})

			Convey("When the source is a file", func() {
				err := compressor.ArchiveDir(filepath.Join(dbDir, "catalog.kz"), dest)

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "is not a directory")
				})
			})

			Convey("When the source does not exist", func() {
				err := compressor.ArchiveDir(filepath.Join(tempDir, "missing"), dest)

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
				})
			})
		})

		Convey("InspectArchive", func() {
			Convey("When the archive is truncated", func() {
				So(compressor.ArchiveDir(dbDir, dest), ShouldBeNil)
				data, err := os.ReadFile(dest)
				So(err, ShouldBeNil)
				So(os.WriteFile(dest, data[:len(data)/2], 0644), ShouldBeNil)

				Convey("It should fail", func() {
					_, err := InspectArchive(dest)
					So(err, ShouldNotBeNil)
				})
			})
		})

		Convey("Peek", func() {
			src := filepath.Join(tempDir, "dump.rdb")
			So(os.WriteFile(src, []byte("REDIS0011rest-of-snapshot"), 0644), ShouldBeNil)
			So(compressor.Compress(src, src+".gz"), ShouldBeNil)

			Convey("It should return the leading decompressed bytes", func() {
				head, err := Peek(src+".gz", 9)
				So(err, ShouldBeNil)
				So(string(head), ShouldEqual, "REDIS0011")
			})

			Convey("It should return a short read for small streams", func() {
				head, err := Peek(src+".gz", 1024)
				So(err, ShouldBeNil)
				So(len(head), ShouldEqual, len("REDIS0011rest-of-snapshot"))
			})
		})
	})
}
