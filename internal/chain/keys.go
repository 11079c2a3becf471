package chain

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"custody-core/pkg/keystore"
)

// KeyProvider 解析热钱包签名私钥。
// 任何失败都是配置错误: 调用方不得在此之后触碰余额。
type KeyProvider interface {
	SigningKey() (*ecdsa.PrivateKey, error)
}

// FileKeyProvider 从加密 Keystore 文件解析签名私钥
// (外部密钥库的本地替身，密码来自环境变量)
type FileKeyProvider struct {
	path     string
	password string
}

func NewFileKeyProvider(path, password string) *FileKeyProvider {
	return &FileKeyProvider{path: path, password: password}
}

func (p *FileKeyProvider) SigningKey() (*ecdsa.PrivateKey, error) {
	keyJSON, err := keystore.LoadFromFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", p.path, err)
	}

	privHex, err := keystore.DecryptKey(keyJSON, p.password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}
