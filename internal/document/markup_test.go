package document

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load(sampleHTML)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", doc.Find("h1").Text())
	assert.Equal(t, 1, doc.Find("p").Length())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		loader  Loader
		markup  string
		wantErr error
	}{
		{name: "empty", loader: DefaultLoader(), markup: "", wantErr: ErrEmptyMarkup},
		{name: "whitespace only", loader: DefaultLoader(), markup: "  \n\t", wantErr: ErrEmptyMarkup},
		{name: "too large", loader: Loader{MaxSize: 16}, markup: strings.Repeat("<p>x</p>", 8), wantErr: ErrMarkupTooLarge},
		{name: "fits", loader: Loader{MaxSize: 64}, markup: "<p>x</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.loader.Load(tt.markup)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadReaderLimit(t *testing.T) {
	l := Loader{MaxSize: 32}

	_, err := l.LoadReader(strings.NewReader(strings.Repeat("a", 100)))
	assert.ErrorIs(t, err, ErrMarkupTooLarge)

	doc, err := l.LoadReader(strings.NewReader("<b>ok</b>"))
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.Find("b").Text())
}

func TestLoadLatin1(t *testing.T) {
	// "café" encoded as ISO-8859-1 is not valid UTF-8.
	markup := []byte("<html><head><meta charset=\"iso-8859-1\"></head><body><p>caf\xe9 au lait, cr\xe8me br\xfbl\xe9e</p></body></html>")

	doc, err := DefaultLoader().Load(string(markup))
	require.NoError(t, err)
	text := doc.Find("p").Text()
	assert.True(t, utf8.ValidString(text), "decoded text must be UTF-8: %q", text)
	assert.True(t, strings.HasPrefix(text, "caf"))
}

func TestDetectCharsetFallback(t *testing.T) {
	assert.NotEmpty(t, DetectCharset([]byte("<p>plain ascii</p>")))
}
