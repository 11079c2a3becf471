package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"custody-core/pkg/errno"
)

// Explorer 浏览器代理客户端 (etherscan 风格 API)
// 扫描器的转账发现和高度回退都走这里
type Explorer struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewExplorer(baseURL, apiKey string) *Explorer {
	return &Explorer{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (e *Explorer) get(ctx context.Context, params url.Values) (gjson.Result, error) {
	// 缺配置属于运维故障: 明确报出，调用方放弃本轮，不重试
	if e.baseURL == "" {
		return gjson.Result{}, errno.ErrExplorerConfig
	}

	params.Set("apikey", e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("explorer status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("explorer returned invalid JSON")
	}
	return gjson.ParseBytes(body), nil
}

// BlockNumber 通过 eth_blockNumber 代理查询链高度 (返回 hex)
func (e *Explorer) BlockNumber(ctx context.Context) (uint64, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_blockNumber")

	root, err := e.get(ctx, params)
	if err != nil {
		return 0, err
	}

	return ParseHexUint64(root.Get("result").String())
}

// TokenTransfers 查询发往 recipient 的代币转账 (module=account&action=tokentx)
func (e *Explorer) TokenTransfers(ctx context.Context, contract, recipient string, startBlock, endBlock uint64) ([]TokenTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("contractaddress", contract)
	params.Set("address", recipient)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", strconv.FormatUint(endBlock, 10))
	params.Set("sort", "asc")

	root, err := e.get(ctx, params)
	if err != nil {
		return nil, err
	}

	return ParseTokenTransfers(root)
}

// ParseTokenTransfers 解析 tokentx 响应体
func ParseTokenTransfers(root gjson.Result) ([]TokenTransfer, error) {
	status := root.Get("status").String()
	message := root.Get("message").String()

	// explorer 对空结果返回 status=0 + "No transactions found"，不是错误
	if status != "1" {
		if strings.Contains(message, "No transactions found") {
			return nil, nil
		}
		return nil, fmt.Errorf("explorer error: %s", message)
	}

	var transfers []TokenTransfer
	for _, item := range root.Get("result").Array() {
		transfers = append(transfers, TokenTransfer{
			Hash:        item.Get("hash").String(),
			From:        item.Get("from").String(),
			To:          item.Get("to").String(),
			Value:       item.Get("value").String(),
			Decimals:    int32(item.Get("tokenDecimal").Int()),
			BlockNumber: item.Get("blockNumber").Uint(),
			Timestamp:   item.Get("timeStamp").Int(),
		})
	}
	return transfers, nil
}

// ParseHexUint64 解析 "0x..." 形式的区块高度
func ParseHexUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex number")
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex number %q: %w", s, err)
	}
	return n, nil
}
