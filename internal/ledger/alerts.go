package ledger

import (
	"errors"
	"fmt"
	"time"

	"portfolio-tracker-go/internal/models"

	"gorm.io/gorm"
)

func (s *Service) findAlert(tx *gorm.DB, alertID uint) (*models.StrategyAlert, error) {
	var alert models.StrategyAlert
	err := tx.Where("holder_id = ?", s.holderID).First(&alert, alertID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: alert %d", ErrNotFound, alertID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load alert %d: %w", alertID, err)
	}
	return &alert, nil
}

// raiseAlert inserts a PENDING alert for the opportunity unless one already
// exists for the same (asset, type) pair, in which case the trigger is
// suppressed and the existing row returned. One actionable item per condition.
func (s *Service) raiseAlert(tx *gorm.DB, opp *Opportunity) (*models.StrategyAlert, bool, error) {
	var existing models.StrategyAlert
	err := tx.Where("holder_id = ? AND asset_id = ? AND strategy_type = ? AND status = ?",
		s.holderID, opp.AssetID, opp.Type, models.AlertStatusPending).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("could not check pending alerts for asset %d: %w", opp.AssetID, err)
	}

	alert := models.StrategyAlert{
		HolderID:         s.holderID,
		AssetID:          opp.AssetID,
		StrategyType:     opp.Type,
		TriggerPrice:     round(opp.TriggerPrice),
		ThresholdPercent: round(opp.ThresholdPercent),
		ReferencePrice:   round(opp.ReferencePrice),
		Status:           models.AlertStatusPending,
	}
	if err := tx.Create(&alert).Error; err != nil {
		return nil, false, fmt.Errorf("could not create alert for asset %d: %w", opp.AssetID, err)
	}
	return &alert, true, nil
}

// RaiseAlert records a triggered opportunity, deduplicating against an
// existing PENDING alert for the same (asset, type) pair. The returned bool
// reports whether a new alert row was created.
func (s *Service) RaiseAlert(opp *Opportunity) (*models.StrategyAlert, bool, error) {
	if opp.Type != models.StrategyTypeBuy && opp.Type != models.StrategyTypeSell {
		return nil, false, fmt.Errorf("%w: unknown strategy type %q", ErrValidation, opp.Type)
	}

	var alert *models.StrategyAlert
	var created bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.findAsset(tx, opp.AssetID); err != nil {
			return err
		}
		var err error
		alert, created, err = s.raiseAlert(tx, opp)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return alert, created, nil
}

// AcknowledgeAlert transitions a PENDING alert to ACKNOWLEDGED.
func (s *Service) AcknowledgeAlert(alertID uint) (*models.StrategyAlert, error) {
	var alert *models.StrategyAlert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = s.findAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Status != models.AlertStatusPending {
			return fmt.Errorf("%w: alert %d is %s, only PENDING alerts can be acknowledged",
				ErrInvalidState, alertID, alert.Status)
		}

		now := time.Now().UTC()
		alert.Status = models.AlertStatusAcknowledged
		alert.AcknowledgedAt = &now
		if err := tx.Save(alert).Error; err != nil {
			return fmt.Errorf("could not acknowledge alert %d: %w", alertID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// ExecuteAlert transitions a PENDING or ACKNOWLEDGED alert to the terminal
// EXECUTED state.
func (s *Service) ExecuteAlert(alertID uint) (*models.StrategyAlert, error) {
	var alert *models.StrategyAlert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = s.findAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Status != models.AlertStatusPending && alert.Status != models.AlertStatusAcknowledged {
			return fmt.Errorf("%w: alert %d is %s and cannot be executed",
				ErrInvalidState, alertID, alert.Status)
		}

		now := time.Now().UTC()
		alert.Status = models.AlertStatusExecuted
		alert.ExecutedAt = &now
		if err := tx.Save(alert).Error; err != nil {
			return fmt.Errorf("could not execute alert %d: %w", alertID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// DismissAlert transitions a PENDING or ACKNOWLEDGED alert to the terminal
// DISMISSED state.
func (s *Service) DismissAlert(alertID uint) (*models.StrategyAlert, error) {
	var alert *models.StrategyAlert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = s.findAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Status != models.AlertStatusPending && alert.Status != models.AlertStatusAcknowledged {
			return fmt.Errorf("%w: alert %d is %s and cannot be dismissed",
				ErrInvalidState, alertID, alert.Status)
		}

		alert.Status = models.AlertStatusDismissed
		if err := tx.Save(alert).Error; err != nil {
			return fmt.Errorf("could not dismiss alert %d: %w", alertID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// PendingAlerts lists the holder's actionable alerts, oldest first.
func (s *Service) PendingAlerts() ([]models.StrategyAlert, error) {
	var alerts []models.StrategyAlert
	err := s.db.Where("holder_id = ? AND status = ?", s.holderID, models.AlertStatusPending).
		Order("created_at asc, id asc").Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("could not list pending alerts: %w", err)
	}
	return alerts, nil
}
