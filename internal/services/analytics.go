package services

import (
	"context"

	"github.com/sparkride/apiserver/types"
)

// topN is the fixed size of the "most popular" rollups.
const topN = 5

// AnalyticsRepository defines the read-only rollup queries.
type AnalyticsRepository interface {
	TotalRevenue(ctx context.Context) (int64, error)
	TotalBikes(ctx context.Context) (int, error)
	TotalReservations(ctx context.Context) (int, error)
	TopBikes(ctx context.Context, limit int) ([]types.BikeRentals, error)
	TopStations(ctx context.Context, limit int) ([]types.StationActivity, error)
	RevenueByMonth(ctx context.Context) ([]types.MonthlyRevenue, error)
}

// AnalyticsService encapsulates the admin dashboard rollups.
type AnalyticsService struct {
	repo AnalyticsRepository
}

func NewAnalyticsService(repo AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

func (s *AnalyticsService) TotalRevenue(ctx context.Context) (int64, error) {
	return s.repo.TotalRevenue(ctx)
}

func (s *AnalyticsService) TotalBikes(ctx context.Context) (int, error) {
	return s.repo.TotalBikes(ctx)
}

func (s *AnalyticsService) TotalReservations(ctx context.Context) (int, error) {
	return s.repo.TotalReservations(ctx)
}

func (s *AnalyticsService) PopularBikes(ctx context.Context) ([]types.BikeRentals, error) {
	return s.repo.TopBikes(ctx, topN)
}

func (s *AnalyticsService) ActiveStations(ctx context.Context) ([]types.StationActivity, error) {
	return s.repo.TopStations(ctx, topN)
}

func (s *AnalyticsService) RevenueOverTime(ctx context.Context) ([]types.MonthlyRevenue, error) {
	return s.repo.RevenueByMonth(ctx)
}
