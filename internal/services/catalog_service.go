package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/klture/creditwallet/internal/models"
	"github.com/klture/creditwallet/internal/repository"
)

// Catalog resolves the authoritative price of a program.
type Catalog interface {
	Lookup(ctx context.Context, title string) (*models.Program, error)
	List(ctx context.Context) ([]models.Program, error)
}

var _ Catalog = (*CatalogService)(nil)

type CatalogService struct {
	db *sql.DB
}

func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) Lookup(ctx context.Context, title string) (*models.Program, error) {
	var p models.Program
	var category string
	err := s.db.QueryRowContext(ctx, `
		SELECT title, category, price_label
		FROM programs
		WHERE title = $1 AND active`, title).Scan(&p.Title, &category, &p.PriceLabel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invalid("program_title", "program title unknown")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup program: %w", repository.Classify(err))
	}

	p.Category = models.ParseCategory(category)
	if p.Price, err = models.ParsePrice(p.PriceLabel); err != nil {
		return nil, fmt.Errorf("program %q: %w", p.Title, err)
	}
	return &p, nil
}

func (s *CatalogService) List(ctx context.Context) ([]models.Program, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, category, price_label
		FROM programs
		WHERE active
		ORDER BY category, title`)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", repository.Classify(err))
	}
	defer rows.Close()

	programs := []models.Program{}
	for rows.Next() {
		var p models.Program
		var category string
		if err := rows.Scan(&p.Title, &category, &p.PriceLabel); err != nil {
			return nil, fmt.Errorf("scan program: %w", repository.Classify(err))
		}
		p.Category = models.ParseCategory(category)
		// Unpriced programs cannot be bought, so they are not listed.
		if p.Price, err = models.ParsePrice(p.PriceLabel); err != nil {
			continue
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", repository.Classify(err))
	}

	return programs, nil
}

// StaticCatalog serves a fixed program list. Used with the in-memory store.
type StaticCatalog struct {
	programs map[string]models.Program
	unpriced map[string]error
}

// NewStaticCatalog prices each program from its label unless Price is already set.
func NewStaticCatalog(programs ...models.Program) *StaticCatalog {
	c := &StaticCatalog{
		programs: make(map[string]models.Program, len(programs)),
		unpriced: make(map[string]error),
	}
	for _, p := range programs {
		if p.Price.IsZero() {
			price, err := models.ParsePrice(p.PriceLabel)
			if err != nil {
				c.unpriced[p.Title] = fmt.Errorf("program %q: %w", p.Title, err)
				continue
			}
			p.Price = price
		}
		c.programs[p.Title] = p
	}
	return c
}

func (c *StaticCatalog) Lookup(ctx context.Context, title string) (*models.Program, error) {
	if err, ok := c.unpriced[title]; ok {
		return nil, err
	}
	p, ok := c.programs[title]
	if !ok {
		return nil, invalid("program_title", "program title unknown")
	}
	return &p, nil
}

func (c *StaticCatalog) List(ctx context.Context) ([]models.Program, error) {
	out := make([]models.Program, 0, len(c.programs))
	for _, p := range c.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// DefaultPrograms mirrors the seed migration.
func DefaultPrograms() []models.Program {
	online := func(title, label string) models.Program {
		return models.Program{Title: models.OnlinePrefix + title, Category: models.CategoryOnline, PriceLabel: label}
	}
	return []models.Program{
		{Title: models.GeneralMembership, Category: models.CategoryFree},
		online("TikTok Content Marketing", "$25"),
		online("TikTok Ads Course", "$25"),
		online("CapCut: Zero to Pro", "$15"),
		{Title: models.OnlinePrefix + "All 3 Courses Bundle", Category: models.CategoryBundle, PriceLabel: "$35"},
	}
}

// normalizeTitle trims the request title and falls back to general membership.
func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.GeneralMembership
	}
	return title
}
