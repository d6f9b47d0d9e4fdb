package node

import (
	"testing"

	"github.com/ghost-mesh/ghost-node/config"
)

func TestAnnounceAddress(t *testing.T) {
	o := config.Default()
	if got := announceAddress(o); got != "" {
		t.Errorf("no advertise address: got %q", got)
	}

	o.Discovery.AdvertiseAddress = "203.0.113.9"
	if got := announceAddress(o); got != "203.0.113.9:5000" {
		t.Errorf("got %q", got)
	}

	o.Discovery.AdvertiseAddress = "203.0.113.9:8080"
	if got := announceAddress(o); got != "203.0.113.9:8080" {
		t.Errorf("got %q", got)
	}
}
