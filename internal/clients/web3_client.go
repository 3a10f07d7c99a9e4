package clients

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const ethTransferGasLimit = 21000

var weiPerEther = decimal.NewFromBigInt(big.NewInt(1), 18)

// Web3Funder proves a crypto deposit on-chain before the backend credits it:
// it sends a self-transfer of the deposited amount from the user's address
// and hands the transaction hash back as the deposit's payment method tag.
type Web3Funder struct {
	rpcURL string
	key    *ecdsa.PrivateKey

	mu     sync.Mutex
	client *ethclient.Client
}

// NewWeb3Funder parses the hex private key; no connection is made until
// the first deposit.
func NewWeb3Funder(rpcURL, privateKeyHex string) (*Web3Funder, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "parse web3 private key")
	}
	return &Web3Funder{rpcURL: rpcURL, key: key}, nil
}

// SendDeposit submits the self-transfer and returns the transaction hash.
func (f *Web3Funder) SendDeposit(ctx context.Context, amount decimal.Decimal) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", errors.New("deposit amount must be greater than zero")
	}

	client, err := f.dial(ctx)
	if err != nil {
		return "", err
	}

	addr := crypto.PubkeyToAddress(f.key.PublicKey)

	nonce, err := client.PendingNonceAt(ctx, addr)
	if err != nil {
		return "", errors.Wrap(err, "fetch nonce")
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "suggest gas price")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetch chain id")
	}

	value := amount.Mul(weiPerEther).BigInt()
	tx := types.NewTransaction(nonce, addr, value, ethTransferGasLimit, gasPrice, nil)

	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), f.key)
	if err != nil {
		return "", errors.Wrap(err, "sign transaction")
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrap(err, "send transaction")
	}
	return signed.Hash().Hex(), nil
}

func (f *Web3Funder) dial(ctx context.Context) (*ethclient.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	client, err := ethclient.DialContext(ctx, f.rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial web3 rpc")
	}
	f.client = client
	return client, nil
}
