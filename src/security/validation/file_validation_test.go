package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("application/pdf"))
	assert.NoError(t, ValidateClientContentType("Application/PDF"))
	assert.NoError(t, ValidateClientContentType("application/octet-stream"))

	assert.Error(t, ValidateClientContentType("text/csv"))
	assert.Error(t, ValidateClientContentType(""))
}

func TestValidateFileContentByMagicBytes(t *testing.T) {
	pdf := bytes.NewReader([]byte("%PDF-1.7\n%âãÏÓ\nsome pdf body"))
	detected, err := ValidateFileContentByMagicBytes(pdf)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", detected)

	// read pointer was reset for the downstream extractor
	pos, err := pdf.Seek(0, 1)
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestValidateFileContentRejectsNonPDF(t *testing.T) {
	_, err := ValidateFileContentByMagicBytes(bytes.NewReader([]byte("date,amount\n2023-01-01,100\n")))
	assert.Error(t, err)

	_, err = ValidateFileContentByMagicBytes(nil)
	assert.Error(t, err)
}
