package p2p

import (
	"errors"
	"net"
	"testing"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/grandcat/zeroconf"
)

func serviceEntry(text []string, port int, ips ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry("peer-5000", "_ghost-mesh._tcp", "local.")
	e.Text = text
	e.Port = port
	for _, ip := range ips {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(ip))
	}
	return e
}

func TestHandleServiceEntry(t *testing.T) {
	d, _ := newTestDiscovery(t, nil, nil)
	magic := "magic=" + d.options.Magic

	ok, err := d.HandleServiceEntry(ctx, serviceEntry([]string{magic}, 5000, "203.0.113.20"))
	if err != nil || !ok {
		t.Fatalf("valid entry: %v %v", ok, err)
	}

	bad := []*zeroconf.ServiceEntry{
		nil,
		serviceEntry([]string{"magic=OTHER"}, 5000, "203.0.113.21"),
		serviceEntry([]string{magic}, 0, "203.0.113.22"),
		serviceEntry([]string{magic}, 5000),
	}
	for i, e := range bad {
		if _, err := d.HandleServiceEntry(ctx, e); !errors.Is(err, types.ErrValidation) {
			t.Errorf("entry %d: got %v, want validation error", i, err)
		}
	}

	peers, err := d.Candidates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 || peers[0].Address != "203.0.113.20:5000" || peers[0].Method != types.DiscoveredByMDNS {
		t.Errorf("candidates %+v", peers)
	}
}
