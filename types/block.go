package types

// Block is immutable once stored. Field names on the wire match the peers' api.
type Block struct {
	Index        int64   `json:"block_index"`
	Timestamp    float64 `json:"timestamp"`
	PreviousHash string  `json:"previous_hash"`
	Hash         string  `json:"block_hash"`
	Proof        int64   `json:"proof"`
	Miner        string  `json:"miner_key"`
}

// BlockHeader is what a peer advertises in its chain meta listing.
type BlockHeader struct {
	Index int64  `json:"block_index"`
	Hash  string `json:"block_hash"`
}

func (b *Block) Header() BlockHeader {
	return BlockHeader{Index: b.Index, Hash: b.Hash}
}
