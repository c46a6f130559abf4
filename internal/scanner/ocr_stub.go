//go:build !ocr

package scanner

func NewOCRExtractor([]string) (TextExtractor, error) {
	return nil, ErrOCRUnavailable
}
