package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/repository"
)

func (s *DefaultService) AddProperty(ctx context.Context, actor models.Actor, req models.AddPropertyRequest) (*models.Property, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Address) == "" || req.TotalUnits < 1 {
		return nil, fmt.Errorf("%w: name, address and at least one unit are required", models.ErrValidation)
	}

	property := &models.Property{
		CompanyID:  actor.CompanyID,
		Name:       req.Name,
		Address:    req.Address,
		City:       req.City,
		TotalUnits: req.TotalUnits,
	}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.Properties().Create(ctx, property)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating property: %w", err)
	}
	return property, nil
}

func (s *DefaultService) AddUnit(ctx context.Context, actor models.Actor, req models.AddUnitRequest) (*models.Unit, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UnitNumber) == "" {
		return nil, fmt.Errorf("%w: unit number is required", models.ErrValidation)
	}

	unit := &models.Unit{
		PropertyID:  req.PropertyID,
		CompanyID:   actor.CompanyID,
		UnitNumber:  req.UnitNumber,
		Description: req.Description,
	}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		property, err := tx.Properties().Get(ctx, actor.CompanyID, req.PropertyID)
		if err != nil {
			return err
		}
		if property.UnitsCount >= property.TotalUnits {
			return fmt.Errorf("%w: allowed units limit exceeded", models.ErrValidation)
		}

		taken, err := tx.Units().UnitNumberExists(ctx, property.ID, req.UnitNumber)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: unit number %s already exists in this property", models.ErrConflict, req.UnitNumber)
		}

		if err := tx.Units().Create(ctx, unit); err != nil {
			return fmt.Errorf("error creating unit: %w", err)
		}
		return tx.Properties().IncrementUnitsCount(ctx, property.ID)
	})
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *DefaultService) AddProspect(ctx context.Context, actor models.Actor, req models.AddProspectRequest) (*models.Prospect, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}

	prospect := &models.Prospect{
		Name:       req.Name,
		Email:      req.Email,
		CompanyID:  actor.CompanyID,
		PropertyID: req.PropertyID,
		UnitID:     req.UnitID,
	}
	if req.IsApproved != nil {
		prospect.IsApproved = *req.IsApproved
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		unit, err := tx.Units().Get(ctx, actor.CompanyID, req.UnitID)
		if err != nil {
			return err
		}
		if unit.PropertyID != req.PropertyID {
			return fmt.Errorf("%w: unit does not belong to the given property", models.ErrValidation)
		}
		return tx.Prospects().Create(ctx, prospect)
	})
	if err != nil {
		return nil, err
	}
	return prospect, nil
}

func (s *DefaultService) SetProspectApproval(ctx context.Context, actor models.Actor, prospectID string, approved bool) (*models.Prospect, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}

	var prospect *models.Prospect
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		prospect, err = tx.Prospects().Get(ctx, actor.CompanyID, prospectID)
		if err != nil {
			return err
		}
		if err := tx.Prospects().SetApproval(ctx, prospect.ID, approved); err != nil {
			return err
		}
		prospect.IsApproved = approved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prospect, nil
}
