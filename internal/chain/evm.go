package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"custody-core/pkg/errno"
	"custody-core/pkg/logger"
)

const (
	tokenTransferGasLimit = 90000 // EstimateGas 失败时的兜底
	nativeTransferGas     = 21000
	receiptPollInterval   = 2 * time.Second
)

// transfer(address,uint256) 的 4 字节方法选择器
var transferMethodID = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// EvmClient 实现 Client: 节点直连 + explorer 代理回退
type EvmClient struct {
	eth      *ethclient.Client
	explorer *Explorer
	chainID  *big.Int
}

func NewEvmClient(rpcURL string, chainID int64, explorer *Explorer) (*EvmClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}

	return &EvmClient{
		eth:      client,
		explorer: explorer,
		chainID:  big.NewInt(chainID),
	}, nil
}

// Height 优先节点直连，失败回退 explorer 代理
func (c *EvmClient) Height(ctx context.Context) (uint64, error) {
	height, err := c.eth.BlockNumber(ctx)
	if err == nil {
		return height, nil
	}
	logger.Warn("node height query failed, falling back to explorer", zap.Error(err))

	height, expErr := c.explorer.BlockNumber(ctx)
	if expErr != nil {
		return 0, fmt.Errorf("%w: height: node: %v, explorer: %v", errno.ErrChainQuery, err, expErr)
	}
	return height, nil
}

func (c *EvmClient) TokenTransfers(ctx context.Context, contract, recipient string, startBlock, endBlock uint64) ([]TokenTransfer, error) {
	return c.explorer.TokenTransfers(ctx, contract, recipient, startBlock, endBlock)
}

func (c *EvmClient) ReceiptStatus(ctx context.Context, txHash string) (TxStatus, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return TxStatusNotFound, nil
	}
	if err != nil {
		return TxStatusNotFound, fmt.Errorf("%w: receipt: %v", errno.ErrChainQuery, err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return TxStatusSuccess, nil
	}
	return TxStatusReverted, nil
}

func (c *EvmClient) SendNative(ctx context.Context, key *ecdsa.PrivateKey, to string, amount *big.Int) (string, error) {
	toAddr := common.HexToAddress(to)
	return c.sendTx(ctx, key, &toAddr, amount, nil, nativeTransferGas)
}

func (c *EvmClient) SendToken(ctx context.Context, key *ecdsa.PrivateKey, contract, to string, amount *big.Int) (string, error) {
	// transfer(to, amount) calldata
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferMethodID...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)

	contractAddr := common.HexToAddress(contract)

	gasLimit := uint64(tokenTransferGasLimit)
	from := crypto.PubkeyToAddress(key.PublicKey)
	estimated, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &contractAddr,
		Data: data,
	})
	if err == nil {
		gasLimit = estimated
	}

	return c.sendTx(ctx, key, &contractAddr, big.NewInt(0), data, gasLimit)
}

func (c *EvmClient) sendTx(ctx context.Context, key *ecdsa.PrivateKey, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (string, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("nonce query: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price query: %w", err)
	}

	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(c.chainID), &types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("%w: %v", errno.ErrChainSubmit, err)
	}

	return tx.Hash().Hex(), nil
}

// WaitReceipt 有界等待回执。到时仍未打包返回 TxStatusNotFound + nil:
// 提交可能在调用方放弃后依然成功，由对账任务收尾。
func (c *EvmClient) WaitReceipt(ctx context.Context, txHash string, timeout time.Duration) (TxStatus, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		status, err := c.ReceiptStatus(ctx, txHash)
		if err == nil && status != TxStatusNotFound {
			return status, nil
		}
		if err != nil {
			logger.Debug("receipt poll failed", zap.String("tx", txHash), zap.Error(err))
		}

		if time.Now().After(deadline) {
			return TxStatusNotFound, nil
		}

		select {
		case <-ctx.Done():
			return TxStatusNotFound, ctx.Err()
		case <-ticker.C:
		}
	}
}
