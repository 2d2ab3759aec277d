package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone_AcceptedShapes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"07123456789", "07123456789"},
		{"07123 456789", "07123456789"},
		{"07123 456 789", "07123456789"},
		{"07123-456-789", "07123456789"},
		{"07123.456.789", "07123456789"},
		{"(07123) 456789", "07123456789"},
		{"  07123456789  ", "07123456789"},
		{"+447123456789", "07123456789"},
		{"+44 7123 456789", "07123456789"},
		{"+44 (0)7123 456789", "07123456789"},
		{"+44-7123-456-789", "07123456789"},
		{"00447123456789", "07123456789"},
		{"0044 7123 456789", "07123456789"},
		{"447123456789", "07123456789"},
		{"7123456789", "07123456789"},
		{"020 7946 0018", "02079460018"},
		{"+44 20 7946 0018", "02079460018"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhone_Rejected(t *testing.T) {
	for _, in := range []string{
		"",
		"0712345678",
		"071234567890",
		"00123456789",
		"+1 555 123 4567",
		"+4471234567",
		"07123a56789",
		"phone",
		"+",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizePhone(in)
			assert.ErrorIs(t, err, ErrInvalidPhone)
		})
	}
}

func TestIsMobilePhone(t *testing.T) {
	assert.True(t, IsMobilePhone("07123456789"))
	assert.False(t, IsMobilePhone("02079460018"))
}

func TestPhoneToE164(t *testing.T) {
	assert.Equal(t, "+447123456789", PhoneToE164("07123456789"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "071*****789", MaskPhone("07123456789"))
	assert.Equal(t, "****", MaskPhone("0712"))
}
