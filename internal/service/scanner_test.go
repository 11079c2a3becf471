package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/chain"
	"custody-core/internal/model"
	"custody-core/pkg/errno"
)

const (
	testHotWallet = "0xHotWallet00000000000000000000000000000001"
	testSender    = "0xSenderAddr0000000000000000000000000000a1"
)

func testUSDT() model.Asset {
	return model.Asset{
		ID:                    1,
		Symbol:                "USDT",
		Chain:                 "ethereum",
		ContractAddress:       "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		Decimals:              6,
		DepositEnabled:        true,
		RequiredConfirmations: 12,
	}
}

func newTestScanner(store *mockStore, lg *mockLedger, ch *mockChain, sink *mockSink) *DepositScanner {
	return NewDepositScanner(store, lg, ch, sink, ScannerConfig{
		HotWallet:      testHotWallet,
		LookbackBlocks: 2000,
		Budget:         time.Minute,
	})
}

func TestScanOnceRequiresHotWallet(t *testing.T) {
	scanner := NewDepositScanner(newMockStore(), newMockLedger(), newMockChain(), &mockSink{}, ScannerConfig{})
	err := scanner.ScanOnce(context.Background())
	assert.ErrorIs(t, err, errno.ErrNoHotWallet)
}

func TestScanDiscoversAndCreditsInOnePass(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}
	store.claims["0xsenderaddr0000000000000000000000000000a1"] = &model.RegisteredAddress{
		ID: 1, UserID: 42, Address: testSender, Chain: "ethereum", Source: "claims_v1",
	}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{{
		Hash:        "0xdeposit1",
		From:        testSender,
		To:          testHotWallet,
		Value:       "2500000", // 2.5 USDT
		Decimals:    6,
		BlockNumber: 1000, // 100 个确认, 远超门槛
	}}

	lg := newMockLedger()
	sink := &mockSink{}
	scanner := newTestScanner(store, lg, ch, sink)

	require.NoError(t, scanner.ScanOnce(context.Background()))

	dep := store.deposits["0xdeposit1"]
	require.NotNil(t, dep)
	assert.Equal(t, uint64(42), dep.UserID)
	assert.Equal(t, "2.5", dep.Amount.String())
	assert.Equal(t, model.DepositStatusConfirmed, dep.Status)
	require.Len(t, lg.credits, 1)
	assert.Equal(t, dep.ID, lg.credits[0])
}

func TestScanUnknownSenderCreatesNoRecord(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{{
		Hash: "0xunknown1", From: testSender, To: testHotWallet,
		Value: "1000000", Decimals: 6, BlockNumber: 1000,
	}}

	lg := newMockLedger()
	sink := &mockSink{}
	scanner := newTestScanner(store, lg, ch, sink)

	require.NoError(t, scanner.ScanOnce(context.Background()))

	assert.Empty(t, store.deposits, "unattributed transfers must leave no deposit record")
	assert.Empty(t, lg.credits)
	events := sink.byKind(model.AuditUnknownSender)
	require.Len(t, events, 1)
	assert.Equal(t, model.AuditLevelInfo, events[0].Level)
}

func TestScanUnknownSenderPicksUpLateRegistration(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{{
		Hash: "0xlate1", From: testSender, To: testHotWallet,
		Value: "1000000", Decimals: 6, BlockNumber: 1000,
	}}

	lg := newMockLedger()
	scanner := newTestScanner(store, lg, ch, &mockSink{})

	// 第一轮: 地址未注册，不建记录
	require.NoError(t, scanner.ScanOnce(context.Background()))
	assert.Empty(t, store.deposits)

	// 地址随后被注册，同一笔转账仍在回看窗口内
	store.claims["0xsenderaddr0000000000000000000000000000a1"] = &model.RegisteredAddress{
		ID: 1, UserID: 42, Address: testSender,
	}
	require.NoError(t, scanner.ScanOnce(context.Background()))
	require.NotNil(t, store.deposits["0xlate1"])
	assert.Len(t, lg.credits, 1)
}

func TestScanConfirmationGating(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}
	store.claims["0xsenderaddr0000000000000000000000000000a1"] = &model.RegisteredAddress{
		ID: 1, UserID: 42, Address: testSender,
	}

	ch := newMockChain()
	ch.height = 1005 // 仅 5 个确认, 门槛 12
	ch.transfers = []chain.TokenTransfer{{
		Hash: "0xyoung1", From: testSender, To: testHotWallet,
		Value: "1000000", Decimals: 6, BlockNumber: 1000,
	}}

	lg := newMockLedger()
	scanner := newTestScanner(store, lg, ch, &mockSink{})

	require.NoError(t, scanner.ScanOnce(context.Background()))

	dep := store.deposits["0xyoung1"]
	require.NotNil(t, dep)
	assert.Equal(t, model.DepositStatusPending, dep.Status)
	assert.Empty(t, lg.credits, "no credit below the confirmation threshold")

	// 链推进后再扫: 确认数达标即入账
	ch.height = 1012
	require.NoError(t, scanner.ScanOnce(context.Background()))
	assert.Len(t, lg.credits, 1)
}

func TestScanSenderMismatchFreezes(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}
	store.deposits["0xtamper1"] = &model.Deposit{
		ID: 7, UserID: 42, AssetID: 1, TxHash: "0xtamper1",
		FromAddress:           testSender,
		BlockHeight:           1000,
		RequiredConfirmations: 12,
		Status:                model.DepositStatusPending,
	}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{{
		Hash: "0xtamper1", From: "0xDifferentSender000000000000000000000000", To: testHotWallet,
		Value: "1000000", Decimals: 6, BlockNumber: 1000,
	}}

	lg := newMockLedger()
	sink := &mockSink{}
	scanner := newTestScanner(store, lg, ch, sink)

	require.NoError(t, scanner.ScanOnce(context.Background()))

	assert.Equal(t, model.DepositStatusSuspicious, store.deposits["0xtamper1"].Status)
	assert.Empty(t, lg.credits, "suspicious deposits must never be credited")
	events := sink.byKind(model.AuditSenderMismatch)
	require.Len(t, events, 1)
	assert.Equal(t, model.AuditLevelHigh, events[0].Level)

	// 后续扫描不得触碰冻结记录
	require.NoError(t, scanner.ScanOnce(context.Background()))
	assert.Equal(t, model.DepositStatusSuspicious, store.deposits["0xtamper1"].Status)
	assert.Empty(t, lg.credits)
}

func TestScanCaseInsensitiveSenderMatch(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}
	// 认领存的是混合大小写，链上观察到全小写
	store.claims["0xsenderaddr0000000000000000000000000000a1"] = &model.RegisteredAddress{
		ID: 1, UserID: 42, Address: testSender,
	}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{{
		Hash: "0xcase1", From: "0XSENDERADDR0000000000000000000000000000A1", To: testHotWallet,
		Value: "1000000", Decimals: 6, BlockNumber: 1000,
	}}

	lg := newMockLedger()
	scanner := newTestScanner(store, lg, ch, &mockSink{})

	require.NoError(t, scanner.ScanOnce(context.Background()))
	require.NotNil(t, store.deposits["0xcase1"])
	assert.Equal(t, uint64(42), store.deposits["0xcase1"].UserID)
	assert.Len(t, lg.credits, 1)
}

func TestScanAlreadyCreditedIsIdempotent(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}
	store.deposits["0xdone1"] = &model.Deposit{
		ID: 9, UserID: 42, AssetID: 1, TxHash: "0xdone1",
		FromAddress:           testSender,
		BlockHeight:           1000,
		RequiredConfirmations: 12,
		Status:                model.DepositStatusCredited,
	}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{{
		Hash: "0xdone1", From: testSender, To: testHotWallet,
		Value: "1000000", Decimals: 6, BlockNumber: 1000,
	}}

	lg := newMockLedger()
	scanner := newTestScanner(store, lg, ch, &mockSink{})

	// 重叠扫描窗口会反复看到同一笔交易
	require.NoError(t, scanner.ScanOnce(context.Background()))
	require.NoError(t, scanner.ScanOnce(context.Background()))
	assert.Empty(t, lg.credits, "credited deposits must not be credited again")
}

func TestScanIgnoresTransfersToOtherRecipients(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}
	store.claims["0xsenderaddr0000000000000000000000000000a1"] = &model.RegisteredAddress{
		ID: 1, UserID: 42, Address: testSender,
	}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{{
		Hash: "0xother1", From: testSender, To: "0xSomebodyElse000000000000000000000000000",
		Value: "1000000", Decimals: 6, BlockNumber: 1000,
	}}

	scanner := newTestScanner(store, newMockLedger(), ch, &mockSink{})
	require.NoError(t, scanner.ScanOnce(context.Background()))
	assert.Empty(t, store.deposits)
}

func TestScanChainErrorSkipsCycle(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}

	ch := newMockChain()
	ch.heightErr = errors.New("rpc down")

	lg := newMockLedger()
	scanner := newTestScanner(store, lg, ch, &mockSink{})

	// 单资产失败只跳过本轮，ScanOnce 自身不报错
	require.NoError(t, scanner.ScanOnce(context.Background()))
	assert.Empty(t, store.deposits)
	assert.Empty(t, lg.credits)
}

func TestScanBudgetAbortsBetweenMutations(t *testing.T) {
	store := newMockStore()
	store.assets = []model.Asset{testUSDT()}
	store.claims["0xsenderaddr0000000000000000000000000000a1"] = &model.RegisteredAddress{
		ID: 1, UserID: 42, Address: testSender,
	}

	ch := newMockChain()
	ch.height = 1100
	ch.transfers = []chain.TokenTransfer{
		{Hash: "0xbudget1", From: testSender, To: testHotWallet, Value: "1000000", Decimals: 6, BlockNumber: 1000},
		{Hash: "0xbudget2", From: testSender, To: testHotWallet, Value: "1000000", Decimals: 6, BlockNumber: 1001},
	}

	lg := newMockLedger()
	scanner := NewDepositScanner(store, lg, ch, &mockSink{}, ScannerConfig{
		HotWallet:      testHotWallet,
		LookbackBlocks: 2000,
		Budget:         -time.Second, // 预算一开始就已耗尽
	})

	require.NoError(t, scanner.ScanOnce(context.Background()))
	assert.Empty(t, store.deposits, "no mutations after the budget is exhausted")
}

func TestConfirmationsAt(t *testing.T) {
	assert.Equal(t, uint64(0), confirmationsAt(100, 100))
	assert.Equal(t, uint64(12), confirmationsAt(112, 100))
	// 高度回退 (重组或 explorer 滞后) 不得下溢
	assert.Equal(t, uint64(0), confirmationsAt(99, 100))
}

func TestParseTransferAmount(t *testing.T) {
	amt, err := parseTransferAmount("2500000", 6)
	require.NoError(t, err)
	assert.Equal(t, "2.5", amt.String())

	amt, err = parseTransferAmount("1000000000000000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "1", amt.String())

	_, err = parseTransferAmount("not-a-number", 6)
	assert.Error(t, err)
}
