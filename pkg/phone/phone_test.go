package phone

import (
	"testing"

	"github.com/grovetools/wagate/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"081234567890", "6281234567890@c.us"},
		{"+62 812-3456-7890", "6281234567890@c.us"},
		{"6281234567890@c.us", "6281234567890@c.us"},
		{"(0)21 555 0101", "62215550101@c.us"},
		{"15551234567", "15551234567@c.us"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestFormatWithCountry(t *testing.T) {
	assert.Equal(t, "447700900123@c.us", FormatWithCountry("07700 900123", "44"))
}

func TestNormalize(t *testing.T) {
	addr, err := Normalize("0812")
	require.NoError(t, err)
	assert.Equal(t, "62812@c.us", addr)

	_, err = Normalize("not a number")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
