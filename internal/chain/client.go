package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"
)

// TokenTransfer 一笔链上代币转账 (explorer 返回格式)
type TokenTransfer struct {
	Hash        string
	From        string
	To          string
	Value       string // 整数字符串 (最小单位)
	Decimals    int32
	BlockNumber uint64
	Timestamp   int64
}

// TxStatus 交易回执状态
type TxStatus int

const (
	TxStatusNotFound TxStatus = iota // 尚未被打包 (或节点未见过该交易)
	TxStatusSuccess
	TxStatusReverted
)

// Reader 扫描侧只读链访问
type Reader interface {
	// Height 返回当前链高度。节点直连失败时回退 explorer 代理，
	// 两者都失败返回 error，调用方必须放弃本轮扫描。
	Height(ctx context.Context) (uint64, error)

	// TokenTransfers 查询指定合约发往 recipient 的转账，区块区间闭区间。
	TokenTransfers(ctx context.Context, contract, recipient string, startBlock, endBlock uint64) ([]TokenTransfer, error)

	// ReceiptStatus 查询交易回执状态
	ReceiptStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// Submitter 提现侧链上提交
type Submitter interface {
	// SendNative 原生币转账，返回广播被接受后的交易哈希
	SendNative(ctx context.Context, key *ecdsa.PrivateKey, to string, amount *big.Int) (string, error)

	// SendToken 合约 transfer 调用，返回广播被接受后的交易哈希
	SendToken(ctx context.Context, key *ecdsa.PrivateKey, contract, to string, amount *big.Int) (string, error)

	// WaitReceipt 在 timeout 内轮询回执。超时返回 TxStatusNotFound 和 nil error:
	// "结果未知，留待对账"，而不是失败。
	WaitReceipt(ctx context.Context, txHash string, timeout time.Duration) (TxStatus, error)
}

// Client 组合读写两侧
type Client interface {
	Reader
	Submitter
}
