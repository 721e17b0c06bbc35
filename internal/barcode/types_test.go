package barcode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/units"
)

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"CODE128": TypeCode128, "qr": TypeQR, "QRCode": TypeQR, "ean-13": TypeEAN13,
		"EAN_8": TypeEAN8, "upc": TypeUPCA, "UPC-A": TypeUPCA, "code 39": TypeCode39,
	} {
		got, ok := ParseType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseType("pdf417")
	assert.False(t, ok)
}

func TestConfig_JSONFieldNames(t *testing.T) {
	raw := `{
		"type": "qr",
		"dimensions": {"width": 2, "height": 2, "unit": "inches"},
		"font": {"family": "Arial", "size": 10, "autoAdjust": false},
		"options": {"showText": true, "stretch": true,
			"ignoreDigits": {"enabled": true, "position": "end", "count": 2}},
		"dualMode": true,
		"dualDimensions": {"width": 1, "height": 1, "unit": "cm"},
		"dualFont": {"family": "Courier", "size": 8},
		"orientation": "vertical",
		"continuousMode": true
	}`
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	cfg.Normalize()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TypeQR, cfg.Type)
	assert.Equal(t, units.Inches, cfg.Dimensions.Unit)
	assert.False(t, cfg.Font.AutoAdjustEnabled())
	assert.True(t, cfg.Options.Stretch)
	assert.Equal(t, End, cfg.Options.IgnoreDigits.Position)
	assert.Equal(t, Vertical, cfg.Orientation)
	assert.True(t, cfg.ContinuousMode)
	assert.Equal(t, 2, cfg.ImagesPerItem())
}

func TestConfig_Validate(t *testing.T) {
	ten := 10.0
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"default is valid", func(c *Config) {}, ""},
		{"unknown type", func(c *Config) { c.Type = "datamatrix" }, "type"},
		{"width too small", func(c *Config) { c.Dimensions.Width = 0.05 }, "dimensions.width"},
		{"height too large", func(c *Config) { c.Dimensions.Height = 50.5 }, "dimensions.height"},
		{"boundary width ok", func(c *Config) { c.Dimensions.Width = 0.1 }, ""},
		{"mm unit rejected", func(c *Config) { c.Dimensions.Unit = units.MM }, "dimensions.unit"},
		{"font too small", func(c *Config) { c.Font.Size = 7 }, "font.size"},
		{"font too large", func(c *Config) { c.Font.Size = 49 }, "font.size"},
		{"ignore count too large", func(c *Config) {
			c.Options.IgnoreDigits = &IgnoreDigits{Enabled: true, Position: Start, Count: 21}
		}, "options.ignoreDigits.count"},
		{"ignore bad position", func(c *Config) {
			c.Options.IgnoreDigits = &IgnoreDigits{Enabled: true, Position: "middle", Count: 1}
		}, "options.ignoreDigits.position"},
		{"bad orientation", func(c *Config) { c.Orientation = "diagonal" }, "orientation"},
		{"dual without fields", func(c *Config) { c.DualMode = true }, "dualDimensions"},
		{"dual fields without dual mode", func(c *Config) {
			c.DualDimensions = &Dimensions{Width: 1, Height: 1, Unit: units.CM}
		}, "dualMode"},
		{"dual with bad dims", func(c *Config) {
			c.DualMode = true
			c.DualDimensions = &Dimensions{Width: ten * 6, Height: 1, Unit: units.CM}
			c.DualFont = &Font{Family: "Arial", Size: 10}
		}, "dualDimensions.width"},
		{"dual with bad font", func(c *Config) {
			c.DualMode = true
			c.DualDimensions = &Dimensions{Width: 2, Height: 1, Unit: units.CM}
			c.DualFont = &Font{Family: "Arial", Size: 4}
		}, "dualFont.size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.field, ae.Field)
		})
	}
}

func TestConfig_NormalizeAliases(t *testing.T) {
	cfg := Config{
		Type:       "EAN-13",
		Dimensions: Dimensions{Width: 2, Height: 1, Unit: "in"},
		Font:       Font{Size: 10},
		Options:    Options{IgnoreDigits: &IgnoreDigits{Enabled: true, Count: 1}},
	}
	cfg.Normalize()

	assert.Equal(t, TypeEAN13, cfg.Type)
	assert.Equal(t, units.Inches, cfg.Dimensions.Unit)
	assert.Equal(t, Horizontal, cfg.Orientation)
	assert.Equal(t, "Arial", cfg.Font.Family)
	assert.Equal(t, Start, cfg.Options.IgnoreDigits.Position)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Secondary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DualMode = true
	cfg.DualDimensions = &Dimensions{Width: 2, Height: 0.8, Unit: units.CM}
	cfg.DualFont = &Font{Family: "Courier", Size: 9}

	sec := cfg.Secondary()
	assert.False(t, sec.DualMode)
	assert.Nil(t, sec.DualDimensions)
	assert.Nil(t, sec.DualFont)
	assert.Equal(t, 2.0, sec.Dimensions.Width)
	assert.Equal(t, "Courier", sec.Font.Family)
	assert.Equal(t, 1, sec.ImagesPerItem())
	assert.Equal(t, cfg.Type, sec.Type)

	// original untouched
	assert.True(t, cfg.DualMode)
	assert.Equal(t, 5.0, cfg.Dimensions.Width)
}
