package p2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/types"
	"github.com/ghost-mesh/ghost-node/utils"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("p2p")

const maxDatagram = 1024

// Discovery keeps the TTL'd peer table fed by beacons and peer updates.
type Discovery struct {
	db        *storage.DB
	options   *config.DiscoveryOptions
	httpPort  int
	bootstrap []string

	self     string
	localIPs map[string]struct{}
	clock    utils.Clock
}

// NewDiscovery announces httpPort as this node's api port. Bootstrap entries
// without a port get httpPort.
func NewDiscovery(db *storage.DB, options *config.DiscoveryOptions, httpPort int, bootstrap []string) *Discovery {
	d := &Discovery{
		db:       db,
		options:  options,
		httpPort: httpPort,
		localIPs: localIPs(),
	}

	if options.AdvertiseAddress != "" {
		d.self = d.normalize(options.AdvertiseAddress)
	}

	seen := make(map[string]struct{})
	for _, b := range bootstrap {
		addr := d.normalize(b)
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			d.bootstrap = append(d.bootstrap, addr)
		}
	}

	return d
}

func localIPs() map[string]struct{} {
	ips := make(map[string]struct{})

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.Warnf("cannot list local addresses: %s", err)
		return ips
	}

	for _, a := range addrs {
		if n, ok := a.(*net.IPNet); ok {
			ips[n.IP.String()] = struct{}{}
		}
	}

	return ips
}

// normalize turns "host" or "host:port" into host:port, empty when unusable.
func (d *Discovery) normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = strings.Trim(addr, "[]"), strconv.Itoa(d.httpPort)
	}
	if host == "" {
		return ""
	}

	return net.JoinHostPort(host, port)
}

// unroutable reports loopback and unspecified hosts, which peers never register.
func unroutable(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return true
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// IsSelf reports whether addr points back at this node.
func (d *Discovery) IsSelf(addr string) bool {
	if d.self != "" && addr == d.self {
		return true
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if port != strconv.Itoa(d.httpPort) {
		return false
	}

	_, local := d.localIPs[host]
	return local
}

func (d *Discovery) isBootstrap(addr string) bool {
	for _, b := range d.bootstrap {
		if b == addr {
			return true
		}
	}

	return false
}

// RegisterPeer upserts addr with last_seen now. It reports false for self,
// loopback and unspecified addresses, which are ignored.
func (d *Discovery) RegisterPeer(ctx context.Context, addr string, method types.DiscoveryMethod) (bool, error) {
	addr = d.normalize(addr)
	if addr == "" {
		return false, fmt.Errorf("%w: empty peer address", types.ErrValidation)
	}

	if d.IsSelf(addr) {
		return false, nil
	}
	if unroutable(addr) && !d.isBootstrap(addr) {
		log.Debugf("ignoring unroutable peer %s", addr)
		return false, nil
	}

	err := d.db.UpsertPeer(ctx, &types.Peer{
		Address:  addr,
		LastSeen: utils.Unix(d.clock.Now()),
		Method:   method,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

// HandleBeacon registers the sender of a well formed foreign beacon. The
// host comes from the beacon when it carries one, else from the datagram source.
func (d *Discovery) HandleBeacon(ctx context.Context, data []byte, from net.Addr) (bool, error) {
	b, err := ParseBeacon(data, d.options.Magic)
	if err != nil {
		return false, err
	}

	host := b.Address
	if _, _, err := net.SplitHostPort(host); err == nil {
		// a host:port address names the api directly
		return d.RegisterPeer(ctx, host, types.DiscoveredByBeacon)
	}
	if host == "" {
		if udp, ok := from.(*net.UDPAddr); ok {
			host = udp.IP.String()
		} else if h, _, err := net.SplitHostPort(from.String()); err == nil {
			host = h
		}
	}
	if host == "" {
		return false, fmt.Errorf("%w: beacon without a usable address", types.ErrValidation)
	}

	return d.RegisterPeer(ctx, net.JoinHostPort(host, strconv.Itoa(b.HTTPPort)), types.DiscoveredByBeacon)
}

// ActivePeers counts peers seen within the active window.
func (d *Discovery) ActivePeers(ctx context.Context) (int, error) {
	since := d.clock.Now().Add(-d.options.Window())

	n, err := d.db.CountPeersSince(ctx, utils.Unix(since))
	return int(n), err
}

// Candidates are the peers to reconcile with: every peer seen within the TTL
// plus the bootstrap list, never this node.
func (d *Discovery) Candidates(ctx context.Context) ([]*types.Peer, error) {
	since := d.clock.Now().Add(-d.options.TTL())

	fresh, err := d.db.PeersSince(ctx, utils.Unix(since))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(fresh)+len(d.bootstrap))
	candidates := make([]*types.Peer, 0, len(fresh)+len(d.bootstrap))
	for _, p := range fresh {
		if d.IsSelf(p.Address) {
			continue
		}
		seen[p.Address] = struct{}{}
		candidates = append(candidates, p)
	}

	for _, addr := range d.bootstrap {
		if _, ok := seen[addr]; ok || d.IsSelf(addr) {
			continue
		}
		candidates = append(candidates, &types.Peer{Address: addr, Method: types.DiscoveredByBootstrap})
	}

	return candidates, nil
}

// Cleanup drops peers silent for longer than the TTL.
func (d *Discovery) Cleanup(ctx context.Context) (int64, error) {
	cutoff := d.clock.Now().Add(-d.options.TTL())

	removed, err := d.db.RemovePeersBefore(ctx, utils.Unix(cutoff))
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		log.Infof("pruned %d stale peers", removed)
	}
	return removed, nil
}

// Start binds the beacon listener and runs the beacon, listener and cleanup
// loops until ctx is done. With discovery disabled only cleanup runs.
func (d *Discovery) Start(ctx context.Context) error {
	go d.cleanupLoop(ctx)

	if d.options.Disabled {
		log.Info("beacon discovery disabled")
		return nil
	}

	conn, err := net.ListenPacket("udp4", d.options.ListenAddr())
	if err != nil {
		return fmt.Errorf("cannot listen for beacons on %s: %w", d.options.ListenAddr(), err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go d.listen(ctx, conn)
	go d.beaconLoop(ctx)

	if d.options.MDNS {
		if err := d.startMDNS(ctx); err != nil {
			log.Warnf("mdns discovery unavailable: %s", err)
		}
	}

	log.Infof("discovery listening on udp %s, beaconing to %s", d.options.ListenAddr(), d.options.BroadcastAddr())
	return nil
}

func (d *Discovery) listen(ctx context.Context, conn net.PacketConn) {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warnf("beacon read failed: %s", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if _, err := d.HandleBeacon(ctx, data, from); err != nil {
			log.Debugf("dropping beacon from %s: %s", from, err)
		}
	}
}

// beacon announces the advertise address split into host and port fields.
// Without a port in the advertise address the api port is sent.
func (d *Discovery) beacon() *Beacon {
	b := &Beacon{
		Magic:    d.options.Magic,
		HTTPPort: d.httpPort,
		Address:  strings.TrimSpace(d.options.AdvertiseAddress),
	}

	if host, port, err := net.SplitHostPort(b.Address); err == nil {
		if n, err := strconv.Atoi(port); err == nil && n > 0 && n <= 65535 {
			b.HTTPPort = n
		}
		b.Address = host
	}

	return b
}

// SendBeacon emits one beacon to addr.
func (d *Discovery) SendBeacon(conn net.PacketConn, addr net.Addr) error {
	_, err := conn.WriteTo(d.beacon().Encode(), addr)
	return err
}

func (d *Discovery) beaconLoop(ctx context.Context) {
	target, err := net.ResolveUDPAddr("udp4", d.options.BroadcastAddr())
	if err != nil {
		log.Errorf("bad broadcast address %s: %s", d.options.BroadcastAddr(), err)
		return
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		log.Errorf("cannot open beacon socket: %s", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Duration(d.options.BeaconInterval) * time.Second)
	defer ticker.Stop()

	for {
		if err := d.SendBeacon(conn, target); err != nil {
			log.Debugf("beacon send failed: %s", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Discovery) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(d.options.CleanupInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Cleanup(ctx); err != nil {
				log.Warnf("peer cleanup failed: %s", err)
			}
		}
	}
}
