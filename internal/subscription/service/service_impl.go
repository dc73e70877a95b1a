package service

import (
	"context"
	"strings"
	"time"

	"github.com/vocaldesk/vocaldesk/internal/config"
	"github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Tiers config.TierTable
}

// Service reconciles provider events into the canonical subscription
// record. The write path is a single atomic upsert; there is no in-process
// locking across requests.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	tiers config.TierTable
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.reconciler"),
		repo:  p.Repo,
		tiers: p.Tiers,
	}
}

func (s *Service) Apply(ctx context.Context, req domain.ApplyRequest) (*domain.ApplyResult, error) {
	if strings.TrimSpace(req.SubscriptionID) == "" {
		return nil, domain.ErrInvalidSubscriptionID
	}
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if _, ok := domain.ParseStatus(string(req.Status)); !ok {
		return nil, domain.ErrInvalidStatus
	}

	tier, known := s.tiers.Resolve(req.PriceID)
	if !known {
		s.log.Warn("unrecognized price id, defaulting to lowest paid tier",
			zap.String("price_id", req.PriceID),
			zap.String("subscription_id", req.SubscriptionID),
		)
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	now := time.Now().UTC()
	record := &domain.Subscription{
		ID:                 strings.TrimSpace(req.SubscriptionID),
		AccountID:          req.AccountID,
		Status:             req.Status,
		PriceID:            strings.TrimSpace(req.PriceID),
		Tier:               tier,
		Quantity:           quantity,
		CancelAtPeriodEnd:  req.CancelAtPeriodEnd,
		CurrentPeriodStart: req.PeriodStart,
		CurrentPeriodEnd:   req.PeriodEnd,
		TrialStart:         req.TrialStart,
		TrialEnd:           req.TrialEnd,
		PausedAt:           req.PausedAt,
		CanceledAt:         req.CanceledAt,
		EndedAt:            req.EndedAt,
		ProviderCustomerID: strings.TrimSpace(req.ProviderCustomerID),
		Current:            true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	result := &domain.ApplyResult{
		SubscriptionID: record.ID,
		AccountID:      record.AccountID,
		Status:         record.Status,
		Tier:           tier,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, record.ID)
		if err != nil {
			return err
		}

		if existing == nil {
			current, err := s.repo.FindCurrentByAccountID(ctx, tx, record.AccountID)
			if err != nil {
				return err
			}
			if current != nil && current.ID != record.ID && domain.IsPlaceholderID(current.ID) {
				moved, err := s.repo.Reidentify(ctx, tx, record.AccountID, current.ID, record)
				if err != nil {
					return err
				}
				if moved > 0 {
					result.Outcome = domain.OutcomeMerged
					result.PreviousStatus = current.Status
					s.log.Info("merged placeholder subscription into provider id",
						zap.String("placeholder_id", current.ID),
						zap.String("subscription_id", record.ID),
						zap.String("account_id", record.AccountID.String()),
					)
					return s.repo.DemoteCurrentExcept(ctx, tx, record.AccountID, record.ID)
				}
				// Lost a race with another delivery that already moved the
				// row; fall through to the plain upsert.
			}
		}

		if err := s.repo.Upsert(ctx, tx, record); err != nil {
			return err
		}
		if existing != nil {
			result.Outcome = domain.OutcomeUpdated
			result.PreviousStatus = existing.Status
		} else {
			result.Outcome = domain.OutcomeCreated
		}

		return s.repo.DemoteCurrentExcept(ctx, tx, record.AccountID, record.ID)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
