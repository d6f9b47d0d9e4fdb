package types

const (
	// SystemAddress sends block rewards.
	SystemAddress = "GhostProtocol_System"
	// FeeCollectorAddress receives asset registration fees.
	FeeCollectorAddress = "Asset_Fee_Collector"
)

// Transaction is pending while BlockIndex is 0.
type Transaction struct {
	ID         string  `json:"tx_id"`
	Sender     string  `json:"sender"`
	Recipient  string  `json:"recipient"`
	Amount     float64 `json:"amount"`
	Timestamp  float64 `json:"timestamp"`
	BlockIndex int64   `json:"block_index"`
}

func (tx *Transaction) Pending() bool {
	return tx.BlockIndex == 0
}

// Account is the denormalized view of an address. Balance must always equal
// the balance derived from the transaction log.
type Account struct {
	Address   string  `json:"address"`
	Balance   float64 `json:"balance"`
	LastMined float64 `json:"last_mined"`
}
