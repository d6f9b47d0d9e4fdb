package p2p

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/grandcat/zeroconf"
)

const mdnsDomain = "local."

func (d *Discovery) mdnsInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ghost"
	}

	return host + "-" + strconv.Itoa(d.httpPort)
}

func (d *Discovery) startMDNS(ctx context.Context) error {
	server, err := zeroconf.Register(d.mdnsInstance(), d.options.MDNSService, mdnsDomain, d.httpPort, []string{"magic=" + d.options.Magic}, nil)
	if err != nil {
		return err
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		server.Shutdown()
		return err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, d.options.MDNSService, mdnsDomain, entries); err != nil {
		server.Shutdown()
		return err
	}

	go func() {
		defer server.Shutdown()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-entries:
				if !ok {
					return
				}
				if _, err := d.HandleServiceEntry(ctx, e); err != nil {
					log.Debugf("dropping mdns entry %s: %s", e.Instance, err)
				}
			}
		}
	}()

	log.Infof("mdns advertising %s as %s", d.options.MDNSService, d.mdnsInstance())
	return nil
}

// HandleServiceEntry registers a node found by an mdns browse. Entries of
// other meshes, told apart by the magic text record, are rejected.
func (d *Discovery) HandleServiceEntry(ctx context.Context, e *zeroconf.ServiceEntry) (bool, error) {
	if e == nil {
		return false, fmt.Errorf("%w: empty mdns entry", types.ErrValidation)
	}

	magic := false
	for _, txt := range e.Text {
		if txt == "magic="+d.options.Magic {
			magic = true
			break
		}
	}
	if !magic {
		return false, fmt.Errorf("%w: foreign mdns service %s", types.ErrValidation, e.Instance)
	}
	if e.Port < 1 || e.Port > 65535 {
		return false, fmt.Errorf("%w: bad mdns port %d", types.ErrValidation, e.Port)
	}

	var ip net.IP
	switch {
	case len(e.AddrIPv4) > 0:
		ip = e.AddrIPv4[0]
	case len(e.AddrIPv6) > 0:
		ip = e.AddrIPv6[0]
	default:
		return false, fmt.Errorf("%w: mdns entry %s without address", types.ErrValidation, e.Instance)
	}

	return d.RegisterPeer(ctx, net.JoinHostPort(ip.String(), strconv.Itoa(e.Port)), types.DiscoveredByMDNS)
}
