package helper

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRDataURL(t *testing.T) {
	url, err := QRDataURL("2@pairing,payload", 256)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}

func TestQRTerminal(t *testing.T) {
	out, err := QRTerminal("2@pairing,payload")
	require.NoError(t, err)
	assert.Greater(t, strings.Count(out, "\n"), 10)

	_, err = QRTerminal("")
	assert.Error(t, err)
}
