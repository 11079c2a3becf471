package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"custody-core/internal/audit"
	"custody-core/internal/chain"
	"custody-core/internal/ledger"
	"custody-core/internal/model"
)

// ---------- Store ----------

type mockStore struct {
	mu sync.Mutex

	assets      []model.Asset
	claims      map[string]*model.RegisteredAddress // key: lower(address)
	deposits    map[string]*model.Deposit           // key: tx hash
	withdrawals map[uint64]*model.Withdrawal
	balances    map[string]*model.Balance // key: "user/asset"
	nextID      uint64

	assetsErr           error
	resolveErr          error
	createDepositErr    error
	createWithdrawalErr error
	setTxHashErr        error
	staleErr            error

	opLog []string // 按调用顺序记录变更方法名
}

func newMockStore() *mockStore {
	return &mockStore{
		claims:      make(map[string]*model.RegisteredAddress),
		deposits:    make(map[string]*model.Deposit),
		withdrawals: make(map[uint64]*model.Withdrawal),
		balances:    make(map[string]*model.Balance),
	}
}

func balKey(userID, assetID uint64) string {
	return fmt.Sprintf("%d/%d", userID, assetID)
}

func (m *mockStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *mockStore) logOp(op string) {
	m.opLog = append(m.opLog, op)
}

func (m *mockStore) DepositableAssets(ctx context.Context) ([]model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assetsErr != nil {
		return nil, m.assetsErr
	}
	var out []model.Asset
	for _, a := range m.assets {
		if a.DepositEnabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) AssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assetsErr != nil {
		return nil, m.assetsErr
	}
	for i := range m.assets {
		if m.assets[i].Symbol == symbol {
			a := m.assets[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ResolveAddress(ctx context.Context, address string) (*model.RegisteredAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	claim, ok := m.claims[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	return claim, nil
}

func (m *mockStore) DepositByTxHash(ctx context.Context, txHash string) (*model.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dep, ok := m.deposits[txHash]
	if !ok {
		return nil, nil
	}
	cp := *dep
	return &cp, nil
}

func (m *mockStore) CreateDeposit(ctx context.Context, dep *model.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createDepositErr != nil {
		return m.createDepositErr
	}
	dep.ID = m.id()
	cp := *dep
	m.deposits[dep.TxHash] = &cp
	m.logOp("CreateDeposit")
	return nil
}

func (m *mockStore) depositByID(id uint64) *model.Deposit {
	for _, d := range m.deposits {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (m *mockStore) UpdateDepositConfirmations(ctx context.Context, id uint64, confirmations uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.depositByID(id); d != nil {
		d.Confirmations = confirmations
	}
	m.logOp("UpdateDepositConfirmations")
	return nil
}

func (m *mockStore) MarkDepositConfirmed(ctx context.Context, id uint64, confirmations uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.depositByID(id); d != nil && d.Status == model.DepositStatusPending {
		d.Status = model.DepositStatusConfirmed
		d.Confirmations = confirmations
	}
	m.logOp("MarkDepositConfirmed")
	return nil
}

func (m *mockStore) MarkDepositSuspicious(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.depositByID(id); d != nil {
		d.Status = model.DepositStatusSuspicious
	}
	m.logOp("MarkDepositSuspicious")
	return nil
}

func (m *mockStore) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createWithdrawalErr != nil {
		return m.createWithdrawalErr
	}
	w.ID = m.id()
	w.CreatedAt = time.Now()
	cp := *w
	m.withdrawals[w.ID] = &cp
	m.logOp("CreateWithdrawal")
	return nil
}

func (m *mockStore) SetWithdrawalTxHash(ctx context.Context, id uint64, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setTxHashErr != nil {
		return m.setTxHashErr
	}
	if w, ok := m.withdrawals[id]; ok {
		w.TxHash = txHash
	}
	m.logOp("SetWithdrawalTxHash")
	return nil
}

func (m *mockStore) CompleteWithdrawal(ctx context.Context, id uint64, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.withdrawals[id]; ok && w.Status == model.WithdrawalStatusPending {
		now := time.Now()
		w.Status = model.WithdrawalStatusCompleted
		w.TxHash = txHash
		w.CompletedAt = &now
	}
	m.logOp("CompleteWithdrawal")
	return nil
}

func (m *mockStore) FailWithdrawal(ctx context.Context, id uint64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.withdrawals[id]; ok && w.Status == model.WithdrawalStatusPending {
		w.Status = model.WithdrawalStatusFailed
		w.ErrorMessage = errMsg
	}
	m.logOp("FailWithdrawal")
	return nil
}

func (m *mockStore) WithdrawalsByUser(ctx context.Context, userID uint64, limit int) ([]model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Withdrawal
	for _, w := range m.withdrawals {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *mockStore) StalePendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staleErr != nil {
		return nil, m.staleErr
	}
	var out []model.Withdrawal
	for _, w := range m.withdrawals {
		if w.Status == model.WithdrawalStatusPending && w.CreatedAt.Before(olderThan) {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *mockStore) Balance(ctx context.Context, userID, assetID uint64) (*model.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[balKey(userID, assetID)]
	if !ok {
		return nil, nil
	}
	cp := *bal
	return &cp, nil
}

func (m *mockStore) DepositsByUser(ctx context.Context, userID uint64, limit int) ([]model.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Deposit
	for _, d := range m.deposits {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockStore) setBalance(userID, assetID uint64, available string) {
	m.balances[balKey(userID, assetID)] = &model.Balance{
		UserID:    userID,
		AssetID:   assetID,
		Available: decimal.RequireFromString(available),
		Locked:    decimal.Zero,
	}
}

// ---------- Ledger ----------

type debitCall struct {
	userID, assetID uint64
	amount, fee     decimal.Decimal
	withdrawalID    uint64
}

type refundCall struct {
	withdrawalID    uint64
	userID, assetID uint64
	amount, fee     decimal.Decimal
}

type mockLedger struct {
	mu sync.Mutex

	debitResult ledger.DebitResult
	debitErr    error
	refundErr   error
	settleErr   error
	creditErr   error

	debits  []debitCall
	refunds []refundCall
	settles []uint64
	credits []uint64
}

func newMockLedger() *mockLedger {
	return &mockLedger{debitResult: ledger.DebitResult{Allowed: true}}
}

func (m *mockLedger) ValidateAndDebit(ctx context.Context, userID, assetID uint64, amount, fee decimal.Decimal, reason string, withdrawalID uint64) (ledger.DebitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debitErr != nil {
		return ledger.DebitResult{}, m.debitErr
	}
	if m.debitResult.Allowed {
		m.debits = append(m.debits, debitCall{userID: userID, assetID: assetID, amount: amount, fee: fee, withdrawalID: withdrawalID})
	}
	return m.debitResult, nil
}

func (m *mockLedger) Refund(ctx context.Context, userID, assetID uint64, amount, fee decimal.Decimal, reason string, withdrawalID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refundErr != nil {
		return m.refundErr
	}
	m.refunds = append(m.refunds, refundCall{withdrawalID: withdrawalID, userID: userID, assetID: assetID, amount: amount, fee: fee})
	return nil
}

func (m *mockLedger) Settle(ctx context.Context, withdrawalID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleErr != nil {
		return m.settleErr
	}
	m.settles = append(m.settles, withdrawalID)
	return nil
}

func (m *mockLedger) Credit(ctx context.Context, depositID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditErr != nil {
		return m.creditErr
	}
	m.credits = append(m.credits, depositID)
	return nil
}

// ---------- Chain ----------

type sendCall struct {
	contract string // 空表示原生币
	to       string
	amount   *big.Int
}

type mockChain struct {
	height       uint64
	heightErr    error
	transfers    []chain.TokenTransfer
	transfersErr error
	receipts     map[string]chain.TxStatus
	receiptErr   error

	sendHash   string
	sendErr    error
	waitStatus chain.TxStatus
	waitErr    error

	sends []sendCall
}

func newMockChain() *mockChain {
	return &mockChain{
		receipts: make(map[string]chain.TxStatus),
		sendHash: "0xabc123",
	}
}

func (m *mockChain) Height(ctx context.Context) (uint64, error) {
	if m.heightErr != nil {
		return 0, m.heightErr
	}
	return m.height, nil
}

func (m *mockChain) TokenTransfers(ctx context.Context, contract, recipient string, startBlock, endBlock uint64) ([]chain.TokenTransfer, error) {
	if m.transfersErr != nil {
		return nil, m.transfersErr
	}
	return m.transfers, nil
}

func (m *mockChain) ReceiptStatus(ctx context.Context, txHash string) (chain.TxStatus, error) {
	if m.receiptErr != nil {
		return chain.TxStatusNotFound, m.receiptErr
	}
	return m.receipts[txHash], nil
}

func (m *mockChain) SendNative(ctx context.Context, key *ecdsa.PrivateKey, to string, amount *big.Int) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sends = append(m.sends, sendCall{to: to, amount: amount})
	return m.sendHash, nil
}

func (m *mockChain) SendToken(ctx context.Context, key *ecdsa.PrivateKey, contract, to string, amount *big.Int) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sends = append(m.sends, sendCall{contract: contract, to: to, amount: amount})
	return m.sendHash, nil
}

func (m *mockChain) WaitReceipt(ctx context.Context, txHash string, timeout time.Duration) (chain.TxStatus, error) {
	if m.waitErr != nil {
		return chain.TxStatusNotFound, m.waitErr
	}
	return m.waitStatus, nil
}

// ---------- Audit sink ----------

type mockSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *mockSink) Emit(ctx context.Context, e audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *mockSink) byKind(kind string) []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Event
	for _, e := range m.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ---------- Key provider ----------

type mockKeys struct {
	key *ecdsa.PrivateKey
	err error
}

func (m *mockKeys) SigningKey() (*ecdsa.PrivateKey, error) {
	return m.key, m.err
}

// ---------- Risk ----------

type mockRisk struct {
	reason string
	err    error
}

func (m *mockRisk) Check(ctx context.Context, userID uint64, asset *model.Asset, amount decimal.Decimal) (string, error) {
	return m.reason, m.err
}
