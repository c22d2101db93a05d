// Package driven defines the interfaces the connector core depends on:
// the Connector contract every vendor adapter satisfies, and the storage
// collaborators (document store, credentials store, blob store, event
// cache) injected into it.
package driven
