package barcode

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontSource hands out font faces by family name. Faces are not safe for
// concurrent use, so implementations return a fresh face per call.
type FontSource interface {
	Face(family string, sizePx, scale float64) (font.Face, error)
}

// FontRegistry holds parsed fonts keyed by lower-cased family name. It is
// built once at startup and shared read-only across workers.
type FontRegistry struct {
	fonts    map[string]*opentype.Font
	fallback *opentype.Font
}

// family aliases that resolve to the bundled Go fonts
var builtinAliases = map[string]string{
	"arial":      "go",
	"helvetica":  "go",
	"sans":       "go",
	"sans-serif": "go",
	"go":         "go",
	"courier":    "go mono",
	"mono":       "go mono",
	"monospace":  "go mono",
	"go mono":    "go mono",
	"bold":       "go bold",
	"arial bold": "go bold",
	"go bold":    "go bold",
}

// NewFontRegistry parses the bundled Go fonts and, when dir is non-empty,
// every .ttf/.otf file in dir (family = file name without extension).
func NewFontRegistry(dir string) (*FontRegistry, error) {
	r := &FontRegistry{fonts: make(map[string]*opentype.Font)}

	for name, data := range map[string][]byte{
		"go":      goregular.TTF,
		"go mono": gomono.TTF,
		"go bold": gobold.TTF,
	} {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse builtin font %q: %w", name, err)
		}
		r.fonts[name] = f
	}
	r.fallback = r.fonts["go"]

	if dir == "" {
		return r, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read font dir %s: %w", dir, err)
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", path, err)
		}
		f, err := opentype.Parse(data)
		if err != nil {
			slog.Warn("Skipping unparsable font", "path", path, "error", err)
			continue
		}
		family := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		r.fonts[family] = f
		slog.Debug("Loaded font", "family", family, "path", path)
	}
	return r, nil
}

// Families lists the registered family names, aliases excluded.
func (r *FontRegistry) Families() []string {
	out := make([]string, 0, len(r.fonts))
	for name := range r.fonts {
		out = append(out, name)
	}
	return out
}

// Face returns a face for family at sizePx (pixels at 96 DPI) multiplied by
// scale. Unknown families fall back to Go Regular.
func (r *FontRegistry) Face(family string, sizePx, scale float64) (font.Face, error) {
	f := r.lookup(family)
	if scale <= 0 {
		scale = 1
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx * scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face %q at %.1fpx: %w", family, sizePx*scale, err)
	}
	return face, nil
}

func (r *FontRegistry) lookup(family string) *opentype.Font {
	key := strings.ToLower(strings.TrimSpace(family))
	if f, ok := r.fonts[key]; ok {
		return f
	}
	if alias, ok := builtinAliases[key]; ok {
		if f, ok := r.fonts[alias]; ok {
			return f
		}
	}
	return r.fallback
}
