package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/batch"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
	"github.com/joseph-ayodele/idcard-reader/internal/scan"
)

func TestRecordsXLSX(t *testing.T) {
	valid := true
	ok := scan.Result{Source: constants.SourceRules, CodeValid: &valid}
	ok.Record.Set(idcard.FieldCNP, "1960101123456")
	ok.Record.Set(idcard.FieldSurname, "POPESCU")

	rows := []batch.FileResult{
		{Path: "/scans/a.jpg", Status: constants.ScanStatusOK, Result: &ok},
		{Path: "/scans/b.pdf", Status: constants.ScanStatusFailed, Err: "ocr b.pdf: upstream service failed"},
	}

	data, err := RecordsXLSX(rows, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Headers, got[0])

	assert.Equal(t, "/scans/a.jpg", got[1][0])
	assert.Equal(t, "1960101123456", got[1][1])
	assert.Equal(t, "POPESCU", got[1][2])
	assert.Equal(t, "yes", got[1][11])
	assert.Equal(t, "rules", got[1][12])
	assert.Equal(t, "OK", got[1][13])

	// No record columns for a failed file.
	assert.Equal(t, "", got[2][1])
	assert.Equal(t, "/scans/b.pdf", got[2][0])
	assert.Equal(t, "FAILED", got[2][13])
	assert.Equal(t, "ocr b.pdf: upstream service failed", got[2][14])
}

func TestRecordsXLSX_Empty(t *testing.T) {
	data, err := RecordsXLSX(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
