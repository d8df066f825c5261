package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	old := version
	SetVersion(v)
	t.Cleanup(func() {
		version = old
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
	})
}

func TestVersionCmd_PrintsBuildAndChips(t *testing.T) {
	withVersion(t, "1.4.0")

	out, err := executeCommand("version")

	require.NoError(t, err)
	assert.Contains(t, out, "idfflash 1.4.0 ("+runtime.Version())
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Contains(t, out, "Chips: esp32, ")
	assert.Contains(t, out, "esp32s3")
}

func TestVersionCmd_Short(t *testing.T) {
	withVersion(t, "dev")

	out, err := executeCommand("version", "--short")

	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	withVersion(t, "dev")

	_, err := executeCommand("version", "extra")

	assert.Error(t, err)
}
