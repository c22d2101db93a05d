package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryForMIME(t *testing.T) {
	tests := []struct {
		mime string
		want FileCategory
	}{
		{"application/pdf", CategoryPDF},
		{"application/vnd.google-apps.document", CategoryDocument},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", CategoryDocument},
		{"application/vnd.google-apps.spreadsheet", CategorySpreadsheet},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", CategorySpreadsheet},
		{"text/csv", CategorySpreadsheet},
		{"application/vnd.openxmlformats-officedocument.presentationml.presentation", CategoryPresentation},
		{"application/vnd.google-apps.folder", CategoryFolder},
		{"text/markdown", CategoryText},
		{"application/json", CategoryText},
		{"image/png", CategoryImage},
		{"audio/mp4", CategoryAudio},
		{"video/mp4", CategoryVideo},
		{"application/zip", CategoryArchive},
		{"application/octet-stream", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryForMIME(tt.mime))
		})
	}
}

func TestConnectorFile_IsFolder(t *testing.T) {
	f := &ConnectorFile{Category: CategoryFolder}
	assert.True(t, f.IsFolder())
	assert.False(t, (&ConnectorFile{Category: CategoryPDF}).IsFolder())
}

func TestConnectorType_Valid(t *testing.T) {
	for _, ct := range AllConnectorTypes() {
		assert.True(t, ct.Valid(), ct.String())
	}
	assert.False(t, ConnectorType("dropbox").Valid())
	assert.False(t, ConnectorType("").Valid())
}
