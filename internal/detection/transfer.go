package detection

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Transfer moves the local snapshot to remote storage. The original path is
// always gone afterwards, whether or not the upload worked.
type Transfer struct {
	fs      afero.Fs
	store   ObjectStore
	bucket  string
	variant Variant
}

// NewTransfer creates the transfer stage.
func NewTransfer(fs afero.Fs, store ObjectStore, bucket string, variant Variant) *Transfer {
	return &Transfer{fs: fs, store: store, bucket: bucket, variant: variant}
}

// Run uploads inputFile as ObjectName. In VariantAnnotate it returns the
// path the snapshot was renamed to, otherwise an empty string.
func (t *Transfer) Run(ctx context.Context, inputFile string) (string, error) {
	if err := t.upload(ctx, inputFile); err != nil {
		t.remove(inputFile)
		log.WithError(err).Warnf("Upload of %s to bucket %s failed", inputFile, t.bucket)
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	log.Debugf("Uploaded %s to %s/%s", inputFile, t.bucket, ObjectName)

	if t.variant != VariantAnnotate {
		t.remove(inputFile)
		return "", nil
	}

	processing := ProcessingPath(inputFile)
	if err := t.fs.Rename(inputFile, processing); err != nil {
		log.WithError(err).Warnf("Failed to move %s to %s", inputFile, processing)
		t.remove(inputFile)
		return "", nil
	}
	return processing, nil
}

func (t *Transfer) upload(ctx context.Context, inputFile string) error {
	f, err := t.fs.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inputFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", inputFile, err)
	}

	return t.store.Upload(ctx, t.bucket, ObjectName, f, info.Size())
}

func (t *Transfer) remove(path string) {
	if err := t.fs.Remove(path); err != nil {
		log.WithError(err).Warnf("Failed to remove %s", path)
	}
}
