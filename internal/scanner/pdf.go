package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"
)

// PDFExtractor concatenates the plain text of every page.
type PDFExtractor struct {
	// MaxPages stops extraction early; zero reads every page.
	MaxPages int
}

func (PDFExtractor) Name() string { return "pdf" }

func (e PDFExtractor) Extract(ctx context.Context, fs afero.Fs, path string) (text string, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	// the parser panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse %s: %v", path, r)
		}
	}()

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}

	var sb strings.Builder
	pages := r.NumPage()
	if e.MaxPages > 0 && pages > e.MaxPages {
		pages = e.MaxPages
	}
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d of %s: %w", i, path, err)
		}
		sb.WriteString(pageText)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
