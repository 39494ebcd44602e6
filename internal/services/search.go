package services

import (
	"context"
	"math"
	"time"

	"localeloop/internal/metrics"
	"localeloop/internal/models"
	"localeloop/internal/store"
	"localeloop/internal/utils"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50
	listingSize     = 6

	// maxPage 保证 (page-1)*limit 不会溢出
	maxPage = math.MaxInt32 / maxPageSize

	cacheKeyFilterOptions = "loops:filters"
	cacheKeyStats         = "loops:stats"

	filterOptionsTTL = 5 * time.Minute
	statsTTL         = time.Minute
)

type SearchService struct {
	store store.Storage
	cache utils.Cache
}

func NewSearchService(s store.Storage, cache utils.Cache) *SearchService {
	return &SearchService{store: s, cache: cache}
}

type SearchParams struct {
	Query string
	City  string
	Tags  []string
	Sort  string
	Page  int
	Limit int
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type SearchResult struct {
	Loops      []models.Loop `json:"loops"`
	Pagination Pagination    `json:"pagination"`
}

type FilterOptions struct {
	Cities []string `json:"cities"`
	Tags   []string `json:"tags"`
}

// normalizePage page 至少为 1，limit 超出范围时回落到默认值或上限
func normalizePage(page, limit, fallback int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 {
		limit = fallback
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// Search 只返回已发布的 Loop，所有条件取交集
func (s *SearchService) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	page, limit := normalizePage(p.Page, p.Limit, defaultPageSize)

	loops, total, err := s.store.Loops.Search(ctx, store.SearchFilter{
		Query:  p.Query,
		City:   p.City,
		Tags:   p.Tags,
		Sort:   store.ParseSortOrder(p.Sort),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, storeErr(err, "No loops found")
	}
	if loops == nil {
		loops = []models.Loop{}
	}

	return &SearchResult{
		Loops: loops,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

func (s *SearchService) lookup(ctx context.Context, key string, dst any) bool {
	hit := s.cache.Get(ctx, key, dst)
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(key, result).Inc()
	return hit
}

// FilterOptions 已发布 Loop 的城市和标签，带缓存
func (s *SearchService) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	var opts FilterOptions
	if s.lookup(ctx, cacheKeyFilterOptions, &opts) {
		return &opts, nil
	}

	cities, err := s.store.Loops.Cities(ctx)
	if err != nil {
		return nil, storeErr(err, "No loops found")
	}
	tags, err := s.store.Loops.Tags(ctx)
	if err != nil {
		return nil, storeErr(err, "No loops found")
	}
	opts = FilterOptions{Cities: nonNil(cities), Tags: nonNil(tags)}

	s.cache.Set(ctx, cacheKeyFilterOptions, opts, filterOptionsTTL)
	return &opts, nil
}

func (s *SearchService) Stats(ctx context.Context) (*store.Stats, error) {
	var stats store.Stats
	if s.lookup(ctx, cacheKeyStats, &stats) {
		return &stats, nil
	}

	stats, err := s.store.Loops.Stats(ctx)
	if err != nil {
		return nil, storeErr(err, "No loops found")
	}
	s.cache.Set(ctx, cacheKeyStats, stats, statsTTL)
	return &stats, nil
}

func (s *SearchService) Featured(ctx context.Context) ([]models.Loop, error) {
	loops, err := s.store.Loops.Featured(ctx, listingSize)
	if err != nil {
		return nil, storeErr(err, "No loops found")
	}
	return nonNilLoops(loops), nil
}

// Popular 按点赞数排序
func (s *SearchService) Popular(ctx context.Context) ([]models.Loop, error) {
	loops, err := s.store.Loops.Popular(ctx, listingSize)
	if err != nil {
		return nil, storeErr(err, "No loops found")
	}
	return nonNilLoops(loops), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilLoops(l []models.Loop) []models.Loop {
	if l == nil {
		return []models.Loop{}
	}
	return l
}
