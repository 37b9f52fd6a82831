package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo tariffdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo tariffdomain.Repository
}

func New(p Params) tariffdomain.Resolver {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tariff.service"),
		repo: p.Repo,
	}
}

func (s *Service) Resolve(ctx context.Context, buildingID snowflake.ID, feeType string) (*tariffdomain.PriceQuotation, error) {
	feeType = strings.TrimSpace(feeType)
	rows, err := s.repo.ListActiveByFeeType(ctx, s.db, buildingID, feeType)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	tariff, _, err := tariffdomain.NewSet(rows).Resolve(feeType)
	if err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (s *Service) LoadSet(ctx context.Context, buildingID snowflake.ID) (tariffdomain.Set, error) {
	rows, err := s.repo.ListActive(ctx, s.db, buildingID)
	if err != nil {
		return tariffdomain.Set{}, fmt.Errorf("list tariffs: %w", err)
	}
	s.log.Debug("tariff.set.loaded",
		zap.String("building_id", buildingID.String()),
		zap.Int("rows", len(rows)),
	)
	return tariffdomain.NewSet(rows), nil
}
