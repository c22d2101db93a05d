package domain

// ConnectorType identifies one external content source.
// The set of variants is closed; the registry rejects anything else.
type ConnectorType string

const (
	// ConnectorTypeGoogleDrive imports files from Google Drive.
	ConnectorTypeGoogleDrive ConnectorType = "google-drive"
	// ConnectorTypeSharePoint imports files from SharePoint/OneDrive drives.
	ConnectorTypeSharePoint ConnectorType = "sharepoint"
	// ConnectorTypeNotion imports pages from a Notion workspace.
	ConnectorTypeNotion ConnectorType = "notion"
	// ConnectorTypeZoom imports meeting recordings and transcripts from Zoom.
	ConnectorTypeZoom ConnectorType = "zoom"
	// ConnectorTypeTeams imports online-meeting recordings from Microsoft Teams.
	ConnectorTypeTeams ConnectorType = "teams"
	// ConnectorTypeUpload accepts direct file uploads from an already
	// authenticated caller.
	ConnectorTypeUpload ConnectorType = "upload"
	// ConnectorTypeURLImport scrapes content from arbitrary URLs.
	ConnectorTypeURLImport ConnectorType = "url-import"
)

// AllConnectorTypes lists every supported connector type.
func AllConnectorTypes() []ConnectorType {
	return []ConnectorType{
		ConnectorTypeGoogleDrive,
		ConnectorTypeSharePoint,
		ConnectorTypeNotion,
		ConnectorTypeZoom,
		ConnectorTypeTeams,
		ConnectorTypeUpload,
		ConnectorTypeURLImport,
	}
}

// Valid reports whether t is a known connector type.
func (t ConnectorType) Valid() bool {
	switch t {
	case ConnectorTypeGoogleDrive, ConnectorTypeSharePoint, ConnectorTypeNotion,
		ConnectorTypeZoom, ConnectorTypeTeams, ConnectorTypeUpload, ConnectorTypeURLImport:
		return true
	}
	return false
}

func (t ConnectorType) String() string {
	return string(t)
}
