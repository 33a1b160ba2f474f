package disk

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/HarryGifford/entra-object-sync/filestore"
)

var _ filestore.FileManager = (*DiskDriver)(nil)

// DiskDriver writes snapshots under one base directory, the local
// counterpart of the bucket layout used in production.
type DiskDriver struct {
	baseDir string
}

func New(baseDir string) *DiskDriver {
	return &DiskDriver{baseDir: baseDir}
}

func (dd *DiskDriver) Create(dir, fileName string, reader io.Reader) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).Error("Failed to create dir.")
		return err
	}

	file, err := os.Create(filepath.Join(dir, fileName))
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, reader)
	return err
}

// Get opens a file in read only mode. Caller closes the returned reader.
func (dd *DiskDriver) Get(dir, fileName string) (io.ReadCloser, error) {
	return os.OpenFile(filepath.Join(dir, fileName), os.O_RDONLY, 0444)
}

func (dd *DiskDriver) GetSnapshotPathAndName(kind, date, format string) (string, string) {
	return filepath.Join(dd.baseDir, "snapshots", kind), date + "." + format
}
