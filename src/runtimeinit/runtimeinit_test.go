package runtimeinit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackfield-desktop/src/config"
)

func TestValidateStartURL(t *testing.T) {
	assert.NoError(t, validateStartURL("https://www.stackfield.com"))
	assert.NoError(t, validateStartURL("http://127.0.0.1:8080/"))
	assert.Error(t, validateStartURL("www.stackfield.com"))
	assert.Error(t, validateStartURL("file:///tmp/index.html"))
	assert.Error(t, validateStartURL("https://"))
}

func TestBootstrapRejectsBadStartURL(t *testing.T) {
	var loggingSetUp bool
	_, err := Bootstrap(Options{
		LoadOptions:  config.LoadOptions{StartURLOverride: "ftp://stackfield.com"},
		SetupLogging: func(bool) { loggingSetUp = true },
	})
	require.Error(t, err)
	assert.True(t, loggingSetUp)
}

func TestBootstrap(t *testing.T) {
	rt, err := Bootstrap(Options{LoadOptions: config.LoadOptions{Debug: true}})
	require.NoError(t, err)
	assert.True(t, rt.Debug.Enabled())
	assert.NotNil(t, rt.Clipboard)
	assert.Equal(t, config.DefaultStartURL, rt.Config.StartURL)
}
