package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/rtd"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

var _ rtd.Source = (*FileSource)(nil)

// FileSource reads the JSON data file written by the feeder.
type FileSource struct {
	fs   afero.Fs
	path string
}

func NewFileSource(fsys afero.Fs, path string) *FileSource {
	return &FileSource{fs: fsys, path: path}
}

func (f *FileSource) Fetch(ctx context.Context) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", rtd.ErrNoData, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return models.DecodeQuote(payload)
}
