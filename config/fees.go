package config

type FeeOptions struct {
	DomainRegistration float64 `json:"domainRegistration"`
	StoragePerMB       float64 `json:"storagePerMB"`
	Message            float64 `json:"message"`
	Invite             float64 `json:"invite"`
}
