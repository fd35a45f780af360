package services

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/klture/creditwallet/internal/models"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

type VoucherConfig struct {
	TTL          time.Duration
	MaxAmount    decimal.Decimal
	MaxPerWindow int64
	Window       time.Duration
}

// TopUpService issues QR vouchers that sales staff redeem once payment is
// received. Pending vouchers live only in Redis.
type TopUpService struct {
	redis  *redis.Client
	ledger *LedgerService
	cfg    VoucherConfig
	logger *zap.Logger

	now     func() time.Time
	newCode func() string
}

func NewTopUpService(redisClient *redis.Client, ledger *LedgerService, cfg VoucherConfig, logger *zap.Logger) *TopUpService {
	return &TopUpService{
		redis:   redisClient,
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newCode: generateVoucherCode,
	}
}

func voucherKey(code string) string {
	return "wallet:voucher:" + code
}

func voucherRateKey(accountID string) string {
	return "wallet:voucher:rate:" + accountID
}

// IssueVoucher stores a pending top-up and returns it with a base64 PNG QR code of the voucher code.
func (s *TopUpService) IssueVoucher(ctx context.Context, accountID string, amount decimal.Decimal) (*models.Voucher, string, error) {
	if accountID == "" {
		return nil, "", invalid("account_id", "must not be empty")
	}
	if !amount.IsPositive() {
		return nil, "", invalid("amount", "must be positive")
	}
	if amount.Exponent() < -2 {
		return nil, "", invalid("amount", "at most two decimal places")
	}
	if s.cfg.MaxAmount.IsPositive() && amount.GreaterThan(s.cfg.MaxAmount) {
		return nil, "", invalid("amount", "must not exceed %s", s.cfg.MaxAmount.StringFixed(2))
	}

	if err := s.checkRate(ctx, accountID); err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	voucher := &models.Voucher{
		Code:      s.newCode(),
		AccountID: accountID,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	data, err := json.Marshal(voucher)
	if err != nil {
		return nil, "", err
	}
	if err := s.redis.Set(ctx, voucherKey(voucher.Code), string(data), s.cfg.TTL).Err(); err != nil {
		return nil, "", fmt.Errorf("%w: store voucher: %w", ErrStorageUnavailable, err)
	}

	qr, err := qrcode.New(voucher.Code, qrcode.Medium)
	if err != nil {
		return nil, "", err
	}
	png, err := qr.PNG(256)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("voucher issued",
		zap.String("account_id", accountID),
		zap.String("code", voucher.Code),
		zap.String("amount", amount.StringFixed(2)))

	return voucher, base64.StdEncoding.EncodeToString(png), nil
}

func (s *TopUpService) checkRate(ctx context.Context, accountID string) error {
	if s.cfg.MaxPerWindow <= 0 {
		return nil
	}

	key := voucherRateKey(accountID)
	n, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: rate counter: %w", ErrStorageUnavailable, err)
	}
	if n == 1 {
		if err := s.redis.Expire(ctx, key, s.cfg.Window).Err(); err != nil {
			s.logger.Warn("rate window not set", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	if n > s.cfg.MaxPerWindow {
		return ErrRateLimited
	}
	return nil
}

// RedeemVoucher credits the voucher amount once. A failed append leaves the
// voucher in place so the operator can retry.
func (s *TopUpService) RedeemVoucher(ctx context.Context, code, operator string) (*models.Voucher, string, error) {
	if code == "" {
		return nil, "", invalid("code", "must not be empty")
	}

	data, err := s.redis.Get(ctx, voucherKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, "", ErrVoucherNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: load voucher: %w", ErrStorageUnavailable, err)
	}

	var voucher models.Voucher
	if err := json.Unmarshal(data, &voucher); err != nil {
		return nil, "", fmt.Errorf("decode voucher %s: %w", code, err)
	}

	entryID, err := s.ledger.TopUp(ctx, voucher.AccountID, voucher.Amount,
		"Top-up voucher "+code, VoucherKeyPrefix+code, operator)
	if err != nil && !errors.Is(err, ErrDuplicateRequest) {
		return nil, "", err
	}

	if err := s.redis.Del(ctx, voucherKey(code)).Err(); err != nil {
		s.logger.Warn("redeemed voucher not removed", zap.String("code", code), zap.Error(err))
	}

	return &voucher, entryID, nil
}

func generateVoucherCode() string {
	b := make([]byte, 10)
	rand.Read(b)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
}
