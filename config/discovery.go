package config

import (
	"strconv"
	"time"
)

type DiscoveryOptions struct {
	Disabled bool `json:"disabled"`

	Magic string `json:"magic"`
	// Port is the UDP port beacons are sent to and received on.
	Port             int    `json:"port"`
	BroadcastAddress string `json:"broadcastAddress"`
	// AdvertiseAddress is the host this node announces in its beacons, optional.
	AdvertiseAddress string `json:"advertiseAddress"`

	BeaconInterval  int `json:"beaconInterval"`  // unit seconds
	CleanupInterval int `json:"cleanupInterval"` // unit seconds
	PeerTTL         int `json:"peerTTL"`         // unit seconds
	ActiveWindow    int `json:"activeWindow"`    // unit seconds

	// MDNS also advertises and browses the api on multicast dns.
	MDNS        bool   `json:"mdns"`
	MDNSService string `json:"mdnsService"`
}

func (d *DiscoveryOptions) BroadcastAddr() string {
	return d.BroadcastAddress + ":" + strconv.Itoa(d.Port)
}

func (d *DiscoveryOptions) ListenAddr() string {
	return ":" + strconv.Itoa(d.Port)
}

func (d *DiscoveryOptions) TTL() time.Duration {
	return time.Duration(d.PeerTTL) * time.Second
}

func (d *DiscoveryOptions) Window() time.Duration {
	return time.Duration(d.ActiveWindow) * time.Second
}
