package service

import (
	"context"
	"fmt"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/idgen"

	"gorm.io/gorm"
)

type AccountService struct {
	db           *gorm.DB
	accountRepo  *repository.AccountRepository
	transferRepo *repository.TransferRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:           db,
		accountRepo:  repository.NewAccountRepository(db),
		transferRepo: repository.NewTransferRepository(db),
	}
}

func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accountRepo.GetOrCreate(ctx, userID)
}

// Recharge 充值（简化版，实际应该走支付渠道）
func (s *AccountService) Recharge(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: 充值金额必须大于0", ErrInvalidArgument)
	}

	account, err := s.accountRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Increase(ctx, tx, userID, amount); err != nil {
			return err
		}

		transfer := &model.FundTransfer{
			TransferNo:    idgen.GenerateTransferNo(),
			UserID:        userID,
			CampaignID:    0,
			Amount:        amount,
			Type:          model.TransferTypeRecharge,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + amount,
			Remark:        "充值",
		}
		return s.transferRepo.Create(ctx, tx, transfer)
	})
}

// ListTransfers 查询用户资金流水
func (s *AccountService) ListTransfers(ctx context.Context, userID int64, page, pageSize int) ([]*model.FundTransfer, int64, error) {
	return s.transferRepo.ListByUserID(ctx, userID, page, pageSize)
}
