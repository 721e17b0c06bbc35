package barcode

import (
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/units"
)

// fakeEncoder returns a black block sized from the hints and records calls.
type fakeEncoder struct {
	mu    sync.Mutex
	calls []string
	hints []Hints
	fail  map[string]bool
	// failWhen, if set, rejects individual calls by value and hints.
	failWhen func(value string, h Hints) bool
}

func (f *fakeEncoder) Encode(value string, t Type, h Hints) (image.Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, value)
	f.hints = append(f.hints, h)
	f.mu.Unlock()

	if f.fail[value] || (f.failWhen != nil && f.failWhen(value, h)) {
		return nil, apperr.Symbology(value, nil, "cannot encode as %s", t)
	}
	if t.Is2D() {
		return imaging.New(h.QRSize, h.QRSize, color.Black), nil
	}
	return imaging.New(max(h.ModuleWidth*20, 1), h.BarHeight, color.Black), nil
}

func (f *fakeEncoder) lastHints() Hints {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hints[len(f.hints)-1]
}

func newFakeRenderer(t *testing.T) (*Renderer, *fakeEncoder) {
	t.Helper()
	enc := &fakeEncoder{fail: map[string]bool{}}
	return NewRenderer(enc, newTestRegistry(t)), enc
}

func TestRender_StandardLabel(t *testing.T) {
	r := NewRenderer(NewEncoder(), newTestRegistry(t))

	img, err := r.Render("12345", 0, Primary, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 189, img.Width)
	assert.Equal(t, 113, img.Height)
	assert.Equal(t, image.Rect(0, 0, 189, 113), img.Image.Bounds())
	assert.Equal(t, float64(units.StandardDPI), img.DPI)
	assert.Equal(t, "001_12345.png", img.Filename)
	assert.Equal(t, Primary, img.Variant)
	assert.Equal(t, "12345", img.Value)

	// corners are background
	r0, g0, b0, _ := img.Image.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r0, g0, b0})
}

func TestRender_Vertical(t *testing.T) {
	r, enc := newFakeRenderer(t)
	cfg := DefaultConfig()
	cfg.Orientation = Vertical
	cfg.Options.ShowText = false

	img, err := r.Render("12345", 0, Primary, cfg)
	require.NoError(t, err)

	assert.Equal(t, 189, img.Width)
	assert.Equal(t, 113, img.Height)
	// bars were laid out on the swapped 113x189 canvas
	assert.Equal(t, 189, enc.lastHints().BarHeight)
}

func TestRender_DimensionsProperty(t *testing.T) {
	r, _ := newFakeRenderer(t)
	properties := gopter.NewProperties(nil)

	properties.Property("output matches configured size in either orientation", prop.ForAll(
		func(w, h float64, vertical, inches bool) bool {
			cfg := DefaultConfig()
			cfg.Options.ShowText = false
			cfg.Dimensions = Dimensions{Width: w, Height: h, Unit: units.CM}
			if inches {
				cfg.Dimensions.Unit = units.Inches
			}
			if vertical {
				cfg.Orientation = Vertical
			}
			img, err := r.Render("X1", 0, Primary, cfg)
			if err != nil {
				return false
			}
			wantW := units.ToPixels(w, cfg.Dimensions.Unit, units.StandardDPI)
			wantH := units.ToPixels(h, cfg.Dimensions.Unit, units.StandardDPI)
			return img.Width == wantW && img.Height == wantH
		},
		gen.Float64Range(0.5, 8),
		gen.Float64Range(0.5, 8),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestRender_IgnoreDigitsAppliedOnce(t *testing.T) {
	reg := newTestRegistry(t)
	properties := gopter.NewProperties(nil)

	properties.Property("encoder sees the value trimmed exactly once", prop.ForAll(
		func(value string, count int, end bool) bool {
			enc := &fakeEncoder{}
			r := NewRenderer(enc, reg)
			cfg := DefaultConfig()
			cfg.Options.ShowText = false
			pos := Start
			if end {
				pos = End
			}
			cfg.Options.IgnoreDigits = &IgnoreDigits{Enabled: true, Position: pos, Count: count}

			img, err := r.Render(value, 3, Primary, cfg)
			if count >= len(value) {
				return err != nil && apperr.Is(err, apperr.KindSymbology) && len(enc.calls) == 0
			}
			want := value[count:]
			if end {
				want = value[:len(value)-count]
			}
			return err == nil && len(enc.calls) == 1 && enc.calls[0] == want && img.Value == want
		},
		gen.RegexMatch(`[0-9A-Z]{1,24}`),
		gen.IntRange(0, MaxIgnoreDigits),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestApplyIgnoreDigits(t *testing.T) {
	tests := []struct {
		name  string
		value string
		id    *IgnoreDigits
		want  string
	}{
		{"nil", "12345", nil, "12345"},
		{"disabled", "12345", &IgnoreDigits{Enabled: false, Position: Start, Count: 2}, "12345"},
		{"start", "ABC12345", &IgnoreDigits{Enabled: true, Position: Start, Count: 3}, "12345"},
		{"end", "12345XYZ", &IgnoreDigits{Enabled: true, Position: End, Count: 3}, "12345"},
		{"runes not bytes", "ÄÖÜ123", &IgnoreDigits{Enabled: true, Position: Start, Count: 3}, "123"},
		{"all", "123", &IgnoreDigits{Enabled: true, Position: End, Count: 3}, ""},
		{"more than length", "12", &IgnoreDigits{Enabled: true, Position: Start, Count: 5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyIgnoreDigits(tt.value, tt.id))
		})
	}
}

func TestRender_SymbologyError(t *testing.T) {
	r := NewRenderer(NewEncoder(), newTestRegistry(t))
	cfg := DefaultConfig()
	cfg.Type = TypeEAN13

	_, err := r.Render("NOT-A-NUMBER", 0, Primary, cfg)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSymbology))
	assert.Contains(t, err.Error(), "NOT-A-NUMBER")
	assert.Contains(t, err.Error(), "ean13")
}

func TestRender_SmallLabel(t *testing.T) {
	r, enc := newFakeRenderer(t)
	cfg := DefaultConfig()
	cfg.Dimensions = Dimensions{Width: 4, Height: 0.8, Unit: units.CM}

	img, err := r.Render("ABC", 0, Primary, cfg)
	require.NoError(t, err)

	assert.Equal(t, 151, img.Width)
	assert.Equal(t, 30, img.Height)
	assert.Equal(t, float64(units.StandardDPI), img.DPI)

	h := enc.lastHints()
	assert.Equal(t, 6, h.ModuleWidth, "2px module at 3x DPI")
	assert.Equal(t, 18, h.TextMargin, "6px margin at 3x DPI")
	assert.True(t, h.ShowText)
}

func TestRender_SmallLabelWithoutAutoAdjust(t *testing.T) {
	r, enc := newFakeRenderer(t)
	off := false
	cfg := DefaultConfig()
	cfg.Dimensions = Dimensions{Width: 4, Height: 0.8, Unit: units.CM}
	cfg.Font.AutoAdjust = &off

	img, err := r.Render("ABC", 0, Primary, cfg)
	require.NoError(t, err)

	assert.Equal(t, 151, img.Width)
	assert.Equal(t, 30, img.Height)
	assert.Equal(t, 2, enc.lastHints().ModuleWidth)
	assert.Equal(t, StandardTextMargin, enc.lastHints().TextMargin)
}

func TestRender_StretchModuleWidth(t *testing.T) {
	r, enc := newFakeRenderer(t)
	cfg := DefaultConfig()
	cfg.Options.Stretch = true
	cfg.Options.ShowText = false

	cfg.Dimensions.Width = 20
	_, err := r.Render("ABC", 0, Primary, cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, enc.lastHints().ModuleWidth) // 756px / 100

	cfg.Dimensions.Width = 2
	img, err := r.Render("ABC", 0, Primary, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, enc.lastHints().ModuleWidth)

	// stretched symbol fills the canvas edge to edge
	r0, _, _, _ := img.Image.At(0, img.Height/2).RGBA()
	assert.Less(t, r0, uint32(0x8000))
}

func TestRender_QRIsSquareAndCentred(t *testing.T) {
	r := NewRenderer(NewEncoder(), newTestRegistry(t))
	cfg := DefaultConfig()
	cfg.Type = TypeQR
	cfg.Options.ShowText = false
	cfg.Dimensions = Dimensions{Width: 4, Height: 2, Unit: units.CM}

	img, err := r.Render("https://example.com", 0, Secondary, cfg)
	require.NoError(t, err)
	assert.Equal(t, 151, img.Width)
	assert.Equal(t, 76, img.Height)
	assert.True(t, strings.HasSuffix(img.Filename, "_dual.png"))

	// left edge is white padding around the centred square
	r0, _, _, _ := img.Image.At(2, img.Height/2).RGBA()
	assert.Equal(t, uint32(0xffff), r0)
}
