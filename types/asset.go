package types

import (
	"encoding/json"
	"strings"
)

type AssetType string

const (
	AssetDomain AssetType = "domain"
	AssetImage  AssetType = "image"
	AssetCSS    AssetType = "css"
	AssetJS     AssetType = "js"
	AssetFont   AssetType = "font"
	AssetVideo  AssetType = "video"
	AssetAudio  AssetType = "audio"
	AssetFile   AssetType = "file"
)

func (t AssetType) Valid() bool {
	switch t {
	case AssetDomain, AssetImage, AssetCSS, AssetJS, AssetFont, AssetVideo, AssetAudio, AssetFile:
		return true
	}
	return false
}

// Textual types get a keyword index.
func (t AssetType) Textual() bool {
	return t == AssetDomain || t == AssetCSS || t == AssetJS
}

// Keywords travel as one comma separated string.
type Keywords []string

func (k Keywords) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(k, ","))
}

func (k *Keywords) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}

	*k = nil
	for _, w := range strings.Split(s, ",") {
		if w != "" {
			*k = append(*k, w)
		}
	}
	return nil
}

// Asset content is base64 on the wire (encoding/json does that for []byte).
type Asset struct {
	ID           string    `json:"asset_id"`
	Owner        string    `json:"owner_pub_key"`
	Type         AssetType `json:"type"`
	Name         string    `json:"name"`
	Content      []byte    `json:"content"`
	Size         int64     `json:"storage_size"`
	CreationTime float64   `json:"creation_time"`
	ExpiryTime   float64   `json:"expiry_time"`
	Keywords     Keywords  `json:"keywords"`
}

func (a *Asset) Expired(now float64) bool {
	return a.ExpiryTime < now
}

func (a *Asset) Meta() AssetMeta {
	return AssetMeta{
		ID:           a.ID,
		Owner:        a.Owner,
		Type:         a.Type,
		Name:         a.Name,
		CreationTime: a.CreationTime,
	}
}

type AssetMeta struct {
	ID           string    `json:"asset_id"`
	Owner        string    `json:"owner_pub_key"`
	Type         AssetType `json:"type"`
	Name         string    `json:"name"`
	CreationTime float64   `json:"creation_time"`
}
