package algorithm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	// PeersPerDifficultyStep active peers raise the difficulty by one digit.
	PeersPerDifficultyStep = 5

	checkInterval = 4096
)

// Difficulty is the count of leading zero hex digits a proof hash needs.
func Difficulty(base, activePeers int) int {
	if activePeers < 0 {
		activePeers = 0
	}
	return base + activePeers/PeersPerDifficultyStep
}

func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ProofHash hashes the decimal concatenation of the previous proof and the nonce.
func ProofHash(lastProof, nonce int64) string {
	buf := make([]byte, 0, 40)
	buf = strconv.AppendInt(buf, lastProof, 10)
	buf = strconv.AppendInt(buf, nonce, 10)
	return Sha256Hex(buf)
}

func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > len(hash) {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

func ValidProof(lastProof, nonce int64, difficulty int) bool {
	return MeetsDifficulty(ProofHash(lastProof, nonce), difficulty)
}

// Solve brute forces the first nonce whose proof hash meets difficulty.
// It gives up with ctx.Err() once the context is done.
func Solve(ctx context.Context, lastProof int64, difficulty int) (int64, error) {
	for nonce := int64(0); ; nonce++ {
		if nonce%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		if ValidProof(lastProof, nonce, difficulty) {
			return nonce, nil
		}
	}
}

// fields are declared in key order so the encoding is stable
type blockFields struct {
	Index        int64   `json:"index"`
	Miner        string  `json:"miner"`
	PreviousHash string  `json:"previous_hash"`
	Proof        int64   `json:"proof"`
	Timestamp    float64 `json:"timestamp"`
}

// BlockHash is sha256 over the sorted-key json of the block's identifying fields.
func BlockHash(index int64, timestamp float64, previousHash string, proof int64, miner string) string {
	raw, _ := json.Marshal(blockFields{
		Index:        index,
		Miner:        miner,
		PreviousHash: previousHash,
		Proof:        proof,
		Timestamp:    timestamp,
	})
	return Sha256Hex(raw)
}

func GenesisHash(seed string) string {
	return Sha256Hex([]byte(seed))
}
