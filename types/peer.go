package types

type DiscoveryMethod string

const (
	DiscoveredByBeacon    DiscoveryMethod = "beacon"
	DiscoveredByBootstrap DiscoveryMethod = "bootstrap"
	DiscoveredByUpdate    DiscoveryMethod = "peer_update"
	DiscoveredByMDNS      DiscoveryMethod = "mdns"
)

// Peer address is host:port of the peer's http api.
type Peer struct {
	Address  string          `json:"ip_address"`
	LastSeen float64         `json:"last_seen"`
	Method   DiscoveryMethod `json:"method"`
}
