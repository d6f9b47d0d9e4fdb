package config

import "time"

type SyncOptions struct {
	Disabled bool `json:"disabled"`

	Interval     int `json:"interval"`     // unit seconds
	InitialDelay int `json:"initialDelay"` // unit seconds

	RequestTimeout   int `json:"requestTimeout"`   // unit milliseconds
	BroadcastTimeout int `json:"broadcastTimeout"` // unit milliseconds

	BroadcastWorkers int `json:"broadcastWorkers"`
	QueueSize        int `json:"queueSize"`

	// BootstrapPeers are always reconciled with, whatever discovery finds.
	BootstrapPeers []string `json:"bootstrapPeers"`

	// TLS switches peer calls to https.
	TLS *TLSClientOptions `json:"tls"`
}

func (s *SyncOptions) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Millisecond
}

func (s *SyncOptions) BroadcastTimeoutDuration() time.Duration {
	return time.Duration(s.BroadcastTimeout) * time.Millisecond
}
