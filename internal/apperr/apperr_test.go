package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "validation with field",
			err:  Validation("dimensions.width", "must be between %.1f and %.1f", 0.1, 50.0),
			want: "validation: dimensions.width: must be between 0.1 and 50.0",
		},
		{
			name: "symbology with value and cause",
			err:  Symbology("12AB", errors.New("not a digit"), "cannot encode as %s", "ean13"),
			want: `symbology: "12AB": cannot encode as ean13: not a digit`,
		},
		{
			name: "layout infeasible",
			err:  LayoutInfeasible("cell width 120.0mm exceeds printable width 80.0mm"),
			want: "layout_infeasible: cell width 120.0mm exceeds printable width 80.0mm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := RemoteUnavailable(errors.New("dial tcp: refused"), "health check failed")
	wrapped := fmt.Errorf("routing: %w", base)

	assert.Equal(t, KindRemoteUnavailable, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindRemoteUnavailable))
	assert.False(t, Is(wrapped, KindIO))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIO_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := IO(cause, "writing archive")

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindIO))
}
