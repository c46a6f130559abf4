package scanner

import (
	"context"
	"errors"

	"github.com/spf13/afero"
)

// ErrOCRUnavailable is returned by NewOCRExtractor in builds without the ocr tag.
var ErrOCRUnavailable = errors.New("ocr support not compiled in (build with -tags ocr)")

// TextExtractor pulls plain text out of a file on fs.
type TextExtractor interface {
	Name() string
	Extract(ctx context.Context, fs afero.Fs, path string) (string, error)
}

// NopExtractor stands in for a disabled capability.
type NopExtractor struct{}

func (NopExtractor) Name() string { return "none" }

func (NopExtractor) Extract(context.Context, afero.Fs, string) (string, error) {
	return "", nil
}

func isNop(e TextExtractor) bool {
	_, ok := e.(NopExtractor)
	return e == nil || ok
}
