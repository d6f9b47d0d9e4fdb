package config

import "time"

type AssetOptions struct {
	Expiry       int    `json:"expiry"` // unit seconds
	DomainSuffix string `json:"domainSuffix"`
	MaxKeywords  int    `json:"maxKeywords"`
}

func (a *AssetOptions) ExpiryDuration() time.Duration {
	return time.Duration(a.Expiry) * time.Second
}
