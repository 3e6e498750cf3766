package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// DefaultMaxMarkupSize limits markup input to 10MB to prevent memory exhaustion
const DefaultMaxMarkupSize = 10 * 1024 * 1024

var (
	ErrEmptyMarkup    = errors.New("markup content required")
	ErrMarkupTooLarge = errors.New("markup exceeds maximum size")
)

// Loader parses markup into documents
type Loader struct {
	MaxSize       int  // Maximum input size in bytes, 0 means DefaultMaxMarkupSize
	DetectCharset bool // Sniff and decode non UTF-8 input
}

// DefaultLoader returns the loader used by Load
func DefaultLoader() Loader {
	return Loader{
		MaxSize:       DefaultMaxMarkupSize,
		DetectCharset: true,
	}
}

// Load parses markup with the default loader
func Load(markup string) (*goquery.Document, error) {
	return DefaultLoader().Load(markup)
}

// Load validates and parses a markup string
func (l Loader) Load(markup string) (*goquery.Document, error) {
	return l.parse([]byte(markup))
}

// LoadReader reads at most MaxSize bytes from r and parses them
func (l Loader) LoadReader(r io.Reader) (*goquery.Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(l.maxSize())+1))
	if err != nil {
		return nil, fmt.Errorf("read markup: %w", err)
	}
	return l.parse(data)
}

func (l Loader) maxSize() int {
	if l.MaxSize <= 0 {
		return DefaultMaxMarkupSize
	}
	return l.MaxSize
}

// Validate checks markup size
func (l Loader) Validate(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyMarkup
	}
	if len(data) > l.maxSize() {
		return fmt.Errorf("%w of %d bytes", ErrMarkupTooLarge, l.maxSize())
	}
	return nil
}

func (l Loader) parse(data []byte) (*goquery.Document, error) {
	if err := l.Validate(data); err != nil {
		return nil, err
	}

	if !l.DetectCharset || utf8.Valid(data) {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}

	detected := DetectCharset(data)
	utf8Reader, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+detected)
	if err != nil {
		// Fallback to direct parsing
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}

// DetectCharset detects and returns charset from markup bytes
func DetectCharset(data []byte) string {
	detector := chardet.NewHtmlDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}
