package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"custody-core/internal/model"
)

// VelocityChecker 基于 Redis 计数器的提现频控。
// 占据外部风控系统的位置; 拒绝原因原样返回给用户。
type VelocityChecker struct {
	rdb        *redis.Client
	maxPerHour int
}

func NewVelocityChecker(rdb *redis.Client, maxPerHour int) *VelocityChecker {
	return &VelocityChecker{rdb: rdb, maxPerHour: maxPerHour}
}

func (c *VelocityChecker) Check(ctx context.Context, userID uint64, asset *model.Asset, amount decimal.Decimal) (string, error) {
	if c.maxPerHour <= 0 {
		return "", nil
	}

	key := fmt.Sprintf("custody:risk:wd:%d:%s", userID, time.Now().Format("2006010215"))
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("risk counter: %w", err)
	}
	// 首次计数时设置过期，窗口随小时滚动
	if count == 1 {
		c.rdb.Expire(ctx, key, 2*time.Hour)
	}

	if count > int64(c.maxPerHour) {
		return fmt.Sprintf("withdrawal velocity limit exceeded: max %d per hour", c.maxPerHour), nil
	}
	return "", nil
}
