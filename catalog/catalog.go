// Package catalog lets analysis workers advertise themselves in etcd so a
// fleet of triage hosts can be coordinated.
//
// A worker publishes which memory image it is processing and which
// collectors it carries. Entries are held by an etcd lease and renewed in
// the background, so a crashed worker disappears from the catalog after the
// TTL rather than lingering as a stale entry.
package catalog

import (
	"time"
)

// WorkerInfo describes one published analysis worker.
type WorkerInfo struct {
	// Name is the worker's deployment name (e.g. "darwin-triage").
	Name string `json:"name"`

	// Version is the worker's semantic version.
	Version string `json:"version"`

	// InstanceID uniquely identifies this running instance, typically a UUID.
	InstanceID string `json:"instance_id"`

	// Hostname is the machine running the worker.
	Hostname string `json:"hostname"`

	// Image is the memory image the worker is currently analyzing, if any.
	Image string `json:"image,omitempty"`

	// Session is the collection session id the worker is running, if any.
	Session string `json:"session,omitempty"`

	// Collectors lists the collector names the worker carries.
	Collectors []string `json:"collectors,omitempty"`

	// StartedAt is when the instance came up.
	StartedAt time.Time `json:"started_at"`
}

// Config configures the catalog connection.
type Config struct {
	// Endpoints lists the etcd cluster endpoints.
	Endpoints []string

	// Namespace prefixes all catalog keys. Defaults to "cairn".
	Namespace string

	// TTL is the lease lifetime in seconds. Defaults to 30.
	TTL int

	// TLS enables certificate authentication when set.
	TLS *TLSConfig
}

// TLSConfig holds the certificate paths for a TLS-secured etcd cluster.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}
