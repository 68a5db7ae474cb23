package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_NotFound(t *testing.T) {
	out := FormatForCLI(NotFound("document", "#abc123"))
	assert.Contains(t, out, "document")
	assert.Contains(t, out, "#abc123")
	assert.Contains(t, out, CodeNotFound)
}

func TestFormatJSON_RoundTripsCode(t *testing.T) {
	data, err := FormatJSON(StoreErrorf(CodeStoreOpen, nil, "open failed"))
	require.NoError(t, err)
	assert.Contains(t, string(data), CodeStoreOpen)
	assert.Contains(t, string(data), `"kind":"STORE"`)
}

func TestFormatForLog_IncludesDetails(t *testing.T) {
	err := IOErrorf(CodeIOMkdir, "mkdir failed").WithDetail("dir", "/data")
	attrs := FormatForLog(err)
	assert.Equal(t, "/data", attrs["detail_dir"])
	assert.Equal(t, CodeIOMkdir, attrs["error_code"])
}
