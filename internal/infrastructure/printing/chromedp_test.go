package printing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpRenderer_Defaults(t *testing.T) {
	config := &ChromedpConfig{}
	r, err := NewChromedpRenderer(config)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, defaultChromeTimeout, config.DefaultTimeout)
	assert.Equal(t, defaultScale, config.Scale)
	assert.NotNil(t, r.logger)
}

func TestNewChromedpRenderer_RejectsScale(t *testing.T) {
	_, err := NewChromedpRenderer(&ChromedpConfig{Scale: 5})
	assert.Error(t, err)
}

func TestPrintOptions_A4Portrait(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{Scale: 1.0}}

	params := r.printOptions(&RenderRequest{
		HTML:      "<html>test</html>",
		PaperSize: PaperSizeA4,
		Margins:   DefaultMargins(),
	})

	// A4 is 210mm x 297mm
	assert.InDelta(t, mmToInches(210), params.PaperWidth, 0.01)
	assert.InDelta(t, mmToInches(297), params.PaperHeight, 0.01)
	assert.False(t, params.Landscape)
	assert.True(t, params.PrintBackground)
	assert.False(t, params.DisplayHeaderFooter)
}

func TestPrintOptions_PaperSizes(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{Scale: 1.0}}

	tests := []struct {
		size          PaperSize
		width, height float64
	}{
		{PaperSizeA5, 148, 210},
		{PaperSizeLetter, 215.9, 279.4},
	}
	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			params := r.printOptions(&RenderRequest{HTML: "x", PaperSize: tt.size})
			assert.InDelta(t, mmToInches(tt.width), params.PaperWidth, 0.01)
			assert.InDelta(t, mmToInches(tt.height), params.PaperHeight, 0.01)
		})
	}
}

func TestPrintOptions_Landscape(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{Scale: 1.0}}

	params := r.printOptions(&RenderRequest{HTML: "x", PaperSize: PaperSizeA4, Landscape: true})

	assert.True(t, params.Landscape)
}

func TestPrintOptions_WithMargins(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{Scale: 1.0}}

	params := r.printOptions(&RenderRequest{
		HTML:      "<html>test</html>",
		PaperSize: PaperSizeA4,
		Margins:   Margins{Top: 10, Right: 15, Bottom: 20, Left: 25},
	})

	assert.InDelta(t, mmToInches(10), params.MarginTop, 0.001)
	assert.InDelta(t, mmToInches(15), params.MarginRight, 0.001)
	assert.InDelta(t, mmToInches(20), params.MarginBottom, 0.001)
	assert.InDelta(t, mmToInches(25), params.MarginLeft, 0.001)
}

func TestPrintOptions_WithFooter(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{Scale: 1.0}}

	params := r.printOptions(&RenderRequest{
		HTML:       "<html>test</html>",
		PaperSize:  PaperSizeA4,
		Margins:    Margins{Bottom: 2},
		FooterHTML: "<div>Footer</div>",
	})

	assert.True(t, params.DisplayHeaderFooter)
	assert.Equal(t, "<div>Footer</div>", params.FooterTemplate)
	assert.NotEmpty(t, params.HeaderTemplate)
	assert.InDelta(t, mmToInches(minFooterMarginMM), params.MarginBottom, 0.001)
}

func TestWrapDocument(t *testing.T) {
	t.Run("document with doctype is kept", func(t *testing.T) {
		doc := "<!DOCTYPE html><html><head></head><body>test</body></html>"
		assert.Equal(t, doc, wrapDocument(&RenderRequest{HTML: doc}))
	})

	t.Run("document with html tag is kept", func(t *testing.T) {
		doc := "<html><head></head><body>test</body></html>"
		assert.Equal(t, doc, wrapDocument(&RenderRequest{HTML: doc}))
	})

	t.Run("fragment is wrapped", func(t *testing.T) {
		result := wrapDocument(&RenderRequest{
			HTML:  "<div>Hello World</div>",
			Title: "Invoice <INV-1>",
		})

		assert.Contains(t, result, "<!DOCTYPE html>")
		assert.Contains(t, result, "<meta charset=\"UTF-8\">")
		assert.Contains(t, result, "<title>Invoice &lt;INV-1&gt;</title>")
		assert.Contains(t, result, "<body><div>Hello World</div></body></html>")
	})
}

func TestChromedpRenderer_RenderValidation(t *testing.T) {
	r, err := NewChromedpRenderer(nil)
	require.NoError(t, err)
	defer r.Close()

	tests := []struct {
		name string
		req  *RenderRequest
		code string
	}{
		{"nil request", nil, ErrCodeInvalidHTML},
		{"empty HTML", &RenderRequest{HTML: "  \n\t ", PaperSize: PaperSizeA4}, ErrCodeInvalidHTML},
		{"invalid paper size", &RenderRequest{HTML: "<p>x</p>", PaperSize: "B5"}, ErrCodeInvalidPaperSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(context.Background(), tt.req)

			var renderErr *RenderError
			require.True(t, errors.As(err, &renderErr))
			assert.Equal(t, tt.code, renderErr.Code)
		})
	}
}

func TestMmToInches(t *testing.T) {
	tests := []struct {
		mm       float64
		expected float64
	}{
		{0, 0},
		{25.4, 1.0},
		{210, 8.2677},
		{297, 11.6929},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, mmToInches(tt.mm), 0.001)
	}
}

func TestEstimatePageCount(t *testing.T) {
	pdf := []byte("<< /Type /Pages /Count 2 >> << /Type /Page >> << /Type /Page >>")
	assert.Equal(t, 2, estimatePageCount(pdf))
	assert.Equal(t, 1, estimatePageCount([]byte("%PDF-1.4")))
}

func TestChromedpRenderer_Close(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{}}
	assert.NoError(t, r.Close())
}
