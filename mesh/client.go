package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/types"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("mesh")

// peer api paths
const (
	PathChainMeta       = "/api/chain_meta"
	PathBlock           = "/api/block/"
	PathAssetsMeta      = "/api/assets_meta"
	PathAssetData       = "/api/asset_data/"
	PathSendTransaction = "/api/send_transaction"
	PathReceiveBlock    = "/api/receive_block"
	PathReceiveMessage  = "/api/messenger/receive_message"
	PathGetFees         = "/api/get_fees"
	PathPeerUpdate      = "/peer_update"
)

// Client talks to other nodes' http api. Every call is bounded by the
// client timeout; transport failures and non 2xx answers are ErrPeerUnreachable.
type Client struct {
	http    *http.Client
	scheme  string
	timeout time.Duration
}

func NewClient(timeout time.Duration, tlsOptions *config.TLSClientOptions) *Client {
	transport := &http.Transport{}
	scheme := "http"
	if tlsOptions != nil {
		transport.TLSClientConfig = tlsOptions.ToTLSConfig()
		scheme = "https"
	}

	return &Client{
		http:    &http.Client{Transport: transport, Timeout: timeout},
		scheme:  scheme,
		timeout: timeout,
	}
}

func (c *Client) url(peer, path string) string {
	return c.scheme + "://" + peer + path
}

func (c *Client) do(ctx context.Context, peer, method, path string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(peer, path), reader)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrPeerUnreachable, peer, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrPeerUnreachable, peer, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(ioutil.Discard, res.Body)
		return fmt.Errorf("%w: %s%s", types.ErrNotFound, peer, path)
	}
	if res.StatusCode/100 != 2 {
		_, _ = io.Copy(ioutil.Discard, res.Body)
		return fmt.Errorf("%w: %s%s answered %d", types.ErrPeerUnreachable, peer, path, res.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(ioutil.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s%s sent unreadable json: %v", types.ErrPeerUnreachable, peer, path, err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, peer, path string, out interface{}) error {
	return c.do(ctx, peer, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, peer, path string, body []byte) error {
	return c.do(ctx, peer, http.MethodPost, path, body, nil)
}

func (c *Client) ChainMeta(ctx context.Context, peer string) (headers []types.BlockHeader, err error) {
	err = c.get(ctx, peer, PathChainMeta, &headers)
	return
}

func (c *Client) Block(ctx context.Context, peer, hash string) (*types.Block, error) {
	var b types.Block
	if err := c.get(ctx, peer, PathBlock+url.PathEscape(hash), &b); err != nil {
		return nil, err
	}

	return &b, nil
}

func (c *Client) AssetsMeta(ctx context.Context, peer string) (metas []types.AssetMeta, err error) {
	err = c.get(ctx, peer, PathAssetsMeta, &metas)
	return
}

func (c *Client) AssetData(ctx context.Context, peer, id string) (*types.Asset, error) {
	var a types.Asset
	if err := c.get(ctx, peer, PathAssetData+url.PathEscape(id), &a); err != nil {
		return nil, err
	}

	return &a, nil
}

func (c *Client) Fees(ctx context.Context, peer string) (fees types.FeeSchedule, err error) {
	err = c.get(ctx, peer, PathGetFees, &fees)
	return
}

// Announce asks peer to register address as a mesh peer.
func (c *Client) Announce(ctx context.Context, peer, address string) error {
	body, err := json.Marshal(map[string]string{"ip_address": address})
	if err != nil {
		return err
	}

	return c.post(ctx, peer, PathPeerUpdate, body)
}
