package catalog

import (
	"context"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/talkincode/shopadmin/internal/assetstore"
	"github.com/talkincode/shopadmin/internal/domain"
)

// AssetLocator resolves asset references to files on disk.
type AssetLocator interface {
	Path(root assetstore.Root, ref string) (string, error)
	Exists(root assetstore.Root, ref string) (bool, error)
}

// ListResult is one page of the listing.
type ListResult struct {
	Items    []ProductSummary
	Total    int64
	Page     int
	PageSize int
}

// Download locates a product deliverable.
type Download struct {
	Path     string
	Filename string
}

// ListingService serves the read side of the catalog.
type ListingService struct {
	repo   Repository
	assets AssetLocator
	prices *PriceFormatter
}

func NewListingService(repo Repository, assets AssetLocator, prices *PriceFormatter) *ListingService {
	return &ListingService{repo: repo, assets: assets, prices: prices}
}

// List returns one page of product summaries, ordered by name unless q
// asks otherwise.
func (s *ListingService) List(ctx context.Context, q ListQuery) (ListResult, error) {
	q = q.normalize()
	rows, total, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, err
	}
	s.fillPrices(rows)
	return ListResult{Items: rows, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Get loads the full product for the edit form.
func (s *ListingService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.FindByID(ctx, id)
}

// ExportCSV writes every product matching q as CSV, ignoring q's paging.
func (s *ListingService) ExportCSV(ctx context.Context, q ListQuery, w io.Writer) error {
	q.Page = 1
	q.PageSize = maxPageSize
	var all []ProductSummary
	for {
		rows, _, err := s.repo.List(ctx, q)
		if err != nil {
			return err
		}
		all = append(all, rows...)
		if len(rows) < q.PageSize {
			break
		}
		q.Page++
	}
	s.fillPrices(all)
	return gocsv.Marshal(all, w)
}

// ResolveDownload returns the deliverable path and the name the file was
// uploaded with.
func (s *ListingService) ResolveDownload(ctx context.Context, id int64) (Download, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Download{}, err
	}
	ok, err := s.assets.Exists(assetstore.RootPrivate, p.FilePath)
	if err != nil {
		return Download{}, wrapStore("stat deliverable", err)
	}
	if !ok {
		return Download{}, assetstore.ErrNotFound
	}
	path, err := s.assets.Path(assetstore.RootPrivate, p.FilePath)
	if err != nil {
		return Download{}, wrapStore("resolve deliverable", err)
	}
	return Download{Path: path, Filename: assetstore.DisplayName(p.FilePath)}, nil
}

func (s *ListingService) fillPrices(rows []ProductSummary) {
	if s.prices == nil {
		return
	}
	for i := range rows {
		rows[i].PriceDisplay = s.prices.Format(rows[i].PriceInCents)
	}
}
