package utils

import (
	"crypto/rand"
	"encoding/json"
	"math"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mr-tron/base58"
)

var log = logging.Logger("utils")

// NewID returns a random 128 bit id, base58 encoded.
func NewID() string {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		log.Error(err)
	}

	return base58.Encode(b)
}

// Unix converts t to fractional unix seconds, the time unit peers exchange.
func Unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnix is the inverse of Unix.
func FromUnix(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Clock is swapped in tests to move time without sleeping.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

func Jsonify(i interface{}) []byte {
	r, err := json.Marshal(i)
	if err != nil {
		log.Error("Jsonify: ", err)
		return nil
	}

	return r
}
