package p2p

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ghost-mesh/ghost-node/types"
)

const beaconSep = "|"

// Beacon is the presence datagram: magic|httpPort[|address]. Older nodes
// send only the first two fields.
type Beacon struct {
	Magic    string
	HTTPPort int
	Address  string
}

func (b *Beacon) Encode() []byte {
	fields := []string{b.Magic, strconv.Itoa(b.HTTPPort)}
	if b.Address != "" {
		fields = append(fields, b.Address)
	}

	return []byte(strings.Join(fields, beaconSep))
}

func ParseBeacon(data []byte, magic string) (*Beacon, error) {
	fields := strings.Split(strings.TrimSpace(string(data)), beaconSep)
	if len(fields) != 2 && len(fields) != 3 {
		return nil, fmt.Errorf("%w: beacon has %d fields", types.ErrValidation, len(fields))
	}

	if fields[0] != magic {
		return nil, fmt.Errorf("%w: foreign beacon magic %q", types.ErrValidation, fields[0])
	}

	port, err := strconv.Atoi(fields[1])
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: bad beacon port %q", types.ErrValidation, fields[1])
	}

	b := &Beacon{Magic: fields[0], HTTPPort: port}
	if len(fields) == 3 {
		b.Address = strings.TrimSpace(fields[2])
	}

	return b, nil
}
