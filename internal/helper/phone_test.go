package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := PhoneNormalizer{CountryCode: "972"}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"050-123 4567", "972501234567", false},
		{"+972 50 123 4567", "972501234567", false},
		{"00972501234567", "972501234567", false},
		{"(972) 50.123.4567", "972501234567", false},
		{"  972501234567 ", "972501234567", false},
		{"", "", true},
		{"05012a4567", "", true},
		{"12345", "", true},
		{"1234567890123456", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := n.Normalize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeWithoutCountryCode(t *testing.T) {
	got, err := PhoneNormalizer{MinDigits: 10}.Normalize("0501234567")
	require.NoError(t, err)
	assert.Equal(t, "0501234567", got)

	_, err = PhoneNormalizer{MinDigits: 10}.Normalize("501234567")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestPhoneFromJID(t *testing.T) {
	tests := []struct {
		jid     string
		want    string
		wantErr bool
	}{
		{"972501234567@s.whatsapp.net", "972501234567", false},
		{"972501234567:12@s.whatsapp.net", "972501234567", false},
		{"972501234567.0:3@s.whatsapp.net", "972501234567", false},
		{"120363025246125486@g.us", "", true},
		{"status@broadcast", "", true},
		{"123456789012345@lid", "", true},
		{"12345@s.whatsapp.net", "", true},
		{"abc@s.whatsapp.net", "", true},
		{"972501234567", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.jid, func(t *testing.T) {
			got, err := PhoneFromJID(tt.jid, 7)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
