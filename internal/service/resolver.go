package service

import (
	"context"
	"fmt"

	"custody-core/internal/model"
)

// AddressResolver 将链上发送方地址归属到唯一内部用户。
// 匹配规则: 跨所有地址认领源做大小写不敏感的精确匹配，首个命中生效。
// 未命中返回 (nil, nil)——这是"不入账"，不是错误；地址日后被注册，
// 后续扫描会重新评估同一笔转账。
type AddressResolver struct {
	store Store
}

func NewAddressResolver(store Store) *AddressResolver {
	return &AddressResolver{store: store}
}

func (r *AddressResolver) Resolve(ctx context.Context, address string) (*model.RegisteredAddress, error) {
	if address == "" {
		return nil, nil
	}

	claim, err := r.store.ResolveAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("resolve address %s: %w", address, err)
	}
	return claim, nil
}
