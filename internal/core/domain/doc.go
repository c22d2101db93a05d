// Package domain contains the value types and sentinel errors shared by
// every connector adapter and every caller of the connector subsystem.
//
// All types here are plain values. Nothing in this package performs I/O,
// and nothing here depends on a vendor SDK.
package domain
