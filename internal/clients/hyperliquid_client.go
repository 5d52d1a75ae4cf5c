// Package clients builds read-only exchange clients for market data.
package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// DefaultHyperliquidURL is the mainnet API endpoint.
const DefaultHyperliquidURL = "https://api.hyperliquid.xyz"

// HyperliquidClient holds the SDK exchange; only its Info API is used.
type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient builds the exchange from privateKeyHex, or from an ephemeral key when it is
// empty. Market data endpoints do not sign requests, so an ephemeral key is enough.
func NewHyperliquidClient(privateKeyHex string, baseURL string) (*HyperliquidClient, error) {
	if baseURL == "" {
		baseURL = DefaultHyperliquidURL
	}

	privateKey, err := loadKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	pubECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}
	accountAddr := crypto.PubkeyToAddress(*pubECDSA).Hex()

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func loadKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key := strings.TrimSpace(privateKeyHex)
	if key == "" {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate ephemeral hyperliquid key")
		}
		return privateKey, nil
	}

	key = strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X")
	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse hyperliquid private key")
	}
	return privateKey, nil
}

func (c *HyperliquidClient) Info() *hyperliquid.Info { return c.exchange.Info() }
func (c *HyperliquidClient) AccountAddress() string  { return c.accountAddr }
