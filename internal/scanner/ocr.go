//go:build ocr

package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/spf13/afero"
)

// OCRExtractor recognizes text in images with tesseract.
type OCRExtractor struct {
	languages []string
	// a tesseract client is not safe for concurrent use
	mu     sync.Mutex
	client *gosseract.Client
}

func NewOCRExtractor(languages []string) (TextExtractor, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set ocr languages: %w", err)
		}
	}
	return &OCRExtractor{languages: languages, client: client}, nil
}

func (*OCRExtractor) Name() string { return "ocr" }

func (e *OCRExtractor) Extract(ctx context.Context, fs afero.Fs, path string) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("load image %s: %w", path, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize %s: %w", path, err)
	}
	return text, nil
}

func (e *OCRExtractor) Close() error {
	return e.client.Close()
}
