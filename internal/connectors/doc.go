// Package connectors groups the vendor adapters. Each subpackage
// implements the driven.Connector interface against one content source
// (Google Drive, SharePoint, Notion, Zoom, Teams, direct upload, URL
// import) and is constructed through the registry.
package connectors
