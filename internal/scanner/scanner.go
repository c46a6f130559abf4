// Package scanner decides whether a message carries text in a forbidden script,
// looking at its text, its caption, PDF documents and photos.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"tg-scriptguard/internal/logger"
)

// Source names the part of a message a verdict came from.
type Source string

const (
	SourceNone    Source = ""
	SourceText    Source = "text"
	SourceCaption Source = "caption"
	SourcePDF     Source = "pdf"
	SourcePhoto   Source = "photo"
)

// Attachment references a file on the platform.
type Attachment struct {
	FileID   string
	FileName string
	MimeType string
	FileSize int64
	Width    int
	Height   int
}

// Envelope is the scannable part of a message.
type Envelope struct {
	Text     string
	Caption  string
	Document *Attachment
	// Photos are the size variants of a single photo.
	Photos []Attachment
}

// HasAttachment is true when scanning may need a download.
func (e Envelope) HasAttachment() bool {
	return e.Document != nil || len(e.Photos) > 0
}

// Result is the verdict on one envelope.
type Result struct {
	Violating bool
	// Text is the text the verdict was made on.
	Text   string
	Source Source
}

// Downloader fetches file contents by platform file ID.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Options configures a Scanner. A nil PDF or OCR extractor skips that kind of attachment.
type Options struct {
	Detector    *Detector
	Downloader  Downloader
	PDF         TextExtractor
	OCR         TextExtractor
	Fs          afero.Fs
	TempDir     string
	MaxFileSize int64
}

// Scanner decides whether a message carries forbidden text. It is safe for
// concurrent use.
type Scanner struct {
	detector    *Detector
	downloader  Downloader
	pdf         TextExtractor
	ocr         TextExtractor
	fs          afero.Fs
	tempDir     string
	maxFileSize int64
}

// New builds a Scanner from opts.
func New(opts Options) *Scanner {
	s := &Scanner{
		detector:    opts.Detector,
		downloader:  opts.Downloader,
		pdf:         opts.PDF,
		ocr:         opts.OCR,
		fs:          opts.Fs,
		tempDir:     opts.TempDir,
		maxFileSize: opts.MaxFileSize,
	}
	if s.pdf == nil {
		s.pdf = NopExtractor{}
	}
	if s.ocr == nil {
		s.ocr = NopExtractor{}
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.tempDir == "" {
		s.tempDir = filepath.Join(os.TempDir(), "scriptguard")
	}
	return s
}

func (s *Scanner) Detector() *Detector { return s.detector }

// Scan never returns an error: attachment failures are logged and count as clean.
func (s *Scanner) Scan(ctx context.Context, env Envelope) Result {
	res := s.scan(ctx, env)
	verdict := "clean"
	if res.Violating {
		verdict = "violation"
	}
	scansTotal.WithLabelValues(string(res.Source), verdict).Inc()
	return res
}

func (s *Scanner) scan(ctx context.Context, env Envelope) Result {
	if s.detector.Match(env.Text) {
		return Result{Violating: true, Text: env.Text, Source: SourceText}
	}
	if s.detector.Match(env.Caption) {
		return Result{Violating: true, Text: env.Caption, Source: SourceCaption}
	}

	if doc := env.Document; doc != nil && !isNop(s.pdf) && s.IsTextDocument(*doc) {
		text, err := s.extract(ctx, s.pdf, *doc)
		if err != nil {
			scanFailures.WithLabelValues("pdf").Inc()
			logger.Warningf("PDF scan of %s (%s) failed, treating as clean: %v", doc.FileID, doc.FileName, err)
		} else if s.detector.Match(text) {
			return Result{Violating: true, Text: text, Source: SourcePDF}
		}
	}

	if len(env.Photos) > 0 && !isNop(s.ocr) {
		photo := LargestPhoto(env.Photos)
		if s.withinLimit(photo) {
			text, err := s.extract(ctx, s.ocr, photo)
			if err != nil {
				scanFailures.WithLabelValues("ocr").Inc()
				logger.Warningf("OCR of photo %s failed, treating as clean: %v", photo.FileID, err)
			} else if s.detector.Match(text) {
				return Result{Violating: true, Text: text, Source: SourcePhoto}
			}
		}
	}

	return Result{}
}

// IsTextDocument reports whether a document is worth downloading for extraction.
func (s *Scanner) IsTextDocument(doc Attachment) bool {
	isPDF := strings.EqualFold(doc.MimeType, "application/pdf") ||
		strings.EqualFold(filepath.Ext(doc.FileName), ".pdf")
	return isPDF && s.withinLimit(doc)
}

func (s *Scanner) withinLimit(a Attachment) bool {
	return s.maxFileSize <= 0 || a.FileSize <= s.maxFileSize
}

// LargestPhoto picks the variant with the most pixels, then the biggest file.
func LargestPhoto(photos []Attachment) Attachment {
	best := photos[0]
	for _, p := range photos[1:] {
		area, bestArea := p.Width*p.Height, best.Width*best.Height
		if area > bestArea || (area == bestArea && p.FileSize > best.FileSize) {
			best = p
		}
	}
	return best
}

// extract downloads a into a temp file that is removed before returning.
func (s *Scanner) extract(ctx context.Context, ex TextExtractor, a Attachment) (string, error) {
	start := time.Now()
	defer func() {
		extractDuration.WithLabelValues(ex.Name()).Observe(time.Since(start).Seconds())
	}()

	data, err := s.downloader.Download(ctx, a.FileID)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	if err := s.fs.MkdirAll(s.tempDir, 0o700); err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	f, err := afero.TempFile(s.fs, s.tempDir, ex.Name()+"-*"+filepath.Ext(a.FileName))
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := s.fs.Remove(path); err != nil {
			logger.Warningf("Failed to remove temp file %s: %v", path, err)
		}
	}()

	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil {
		return "", fmt.Errorf("write temp file: %w", werr)
	}
	if cerr != nil {
		return "", fmt.Errorf("close temp file: %w", cerr)
	}

	text, err := ex.Extract(ctx, s.fs, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ex.Name(), err)
	}
	return text, nil
}
