package types

// Fee type keys as exchanged with peers on /api/get_fees.
const (
	FeeDomainRegistration = "domain_reg"
	FeeStoragePerMB       = "storage_mb"
	FeeMessage            = "msg_fee"
	FeeInvite             = "invite_fee"
)

// FeeSchedule maps fee type to amount.
type FeeSchedule map[string]float64
