package filestore

import (
	"io"
)

// FileManager abstracts where sync snapshots land, local disk in
// development and a bucket in production.
type FileManager interface {
	Create(dir, fileName string, reader io.Reader) error
	Get(dir, fileName string) (io.ReadCloser, error)
	GetSnapshotPathAndName(kind, date, format string) (string, string)
}
