package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
)

// recordActivity 尽力而为地写一条审计记录
// 审计写入失败只记日志，不回滚已完成的主状态变更
func recordActivity(ctx context.Context, repo *repository.Repository, logger *zap.Logger, entry *model.ActivityLog) {
	if err := repo.ActivityLog.Create(ctx, entry); err != nil {
		logger.Error("写入审计记录失败",
			zap.String("action", entry.Action),
			zap.String("description", entry.Description),
			zap.Error(err),
		)
	}
}

// normalizeEmail 邮箱规范化：去首尾空白并转小写
// 唯一性检查与登录匹配都基于规范化后的值
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateTempPassword 生成指定长度的临时密码（保证包含字母和数字）
// 去除易混淆字符（0/O、1/l/I 等），方便人工抄录
func generateTempPassword(length int) (string, error) {
	const letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	const digits = "23456789"
	const all = letters + digits

	if length < 4 {
		length = 8
	}

	result := make([]byte, length)

	// 保证至少1个字母+1个数字
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
	if err != nil {
		return "", err
	}
	result[0] = letters[n.Int64()]

	n, err = rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
	if err != nil {
		return "", err
	}
	result[1] = digits[n.Int64()]

	// 剩余位随机填充
	for i := 2; i < length; i++ {
		n, err = rand.Int(rand.Reader, big.NewInt(int64(len(all))))
		if err != nil {
			return "", err
		}
		result[i] = all[n.Int64()]
	}

	// Fisher-Yates 洗牌
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		result[i], result[j.Int64()] = result[j.Int64()], result[i]
	}

	return string(result), nil
}

// generateClerkCode 生成 6 位数字工号（100000-999999）
func generateClerkCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
