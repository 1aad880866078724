// Package refcache is the PostgreSQL-backed reference cache of known
// beverages and category rules used by the verification engine's
// database-backed extension checks. Match history is written by the job
// store, not here.
package refcache

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	infracache "github.com/aerocristobal/label-verify/infrastructure/cache"
	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
	"github.com/aerocristobal/label-verify/internal/model"
)

// categoryRuleTTL bounds how long a category rule lookup is trusted before
// re-reading from the database. Category rules change only with a schema
// migration, so this is generous.
const categoryRuleTTL = 10 * time.Minute

// Cache is the PostgreSQL-backed reference cache. Category-rule lookups,
// which are read on nearly every verification and change only on
// migration, are fronted by an in-memory TTL cache to spare the database
// a round trip per job.
type Cache struct {
	db    *sql.DB
	rules *infracache.TTLCache
}

// New wraps an open database handle as a reference cache.
func New(db *sql.DB) *Cache {
	return &Cache{db: db, rules: infracache.NewTTLCache(categoryRuleTTL)}
}

// FindExact returns known beverages matching brand and classType
// case-insensitively, verified rows first, cheapest ABV first.
func (c *Cache) FindExact(ctx context.Context, brand, classType string) ([]model.KnownBeverage, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT `+beverageColumns+`
        FROM known_beverages
        WHERE lower(brand_name) = lower($1) AND lower(class_type) = lower($2)
        ORDER BY is_verified DESC, abv ASC
        LIMIT 10
    `, brand, classType)
	if err != nil {
		return nil, apperrors.DatabaseError("find_exact", err)
	}
	defer rows.Close()
	return scanBeverages(rows)
}

// FindByBrand returns known beverages matching brand case-insensitively,
// verified rows first.
func (c *Cache) FindByBrand(ctx context.Context, brand string) ([]model.KnownBeverage, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT `+beverageColumns+`
        FROM known_beverages
        WHERE lower(brand_name) = lower($1)
        ORDER BY is_verified DESC
        LIMIT 10
    `, brand)
	if err != nil {
		return nil, apperrors.DatabaseError("find_by_brand", err)
	}
	defer rows.Close()
	return scanBeverages(rows)
}

// FindWithStaleness returns the first FindExact hit, annotated with whether
// it is older than thresholdDays.
func (c *Cache) FindWithStaleness(ctx context.Context, brand, classType string, thresholdDays int) (*model.KnownBeverage, bool, error) {
	rows, err := c.FindExact(ctx, brand, classType)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	hit := rows[0]
	stale := hit.IsStale(time.Now().UTC(), thresholdDays)
	return &hit, stale, nil
}

// UpsertBatch writes records through to the cache, idempotent on
// (brand, class, source), and returns the resulting rows.
func (c *Cache) UpsertBatch(ctx context.Context, records []model.RegistryRecord) ([]model.KnownBeverage, error) {
	result := make([]model.KnownBeverage, 0, len(records))
	for _, rec := range records {
		abv := 0.0
		if rec.InferredABV != nil {
			abv = *rec.InferredABV
		}
		now := time.Now().UTC()

		row := c.db.QueryRowContext(ctx, `
            INSERT INTO known_beverages
                (id, brand_name, product_name, class_type, beverage_category, abv, country_of_origin, source_url, is_verified, source, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10, $10)
            ON CONFLICT (lower(brand_name), lower(class_type), source) DO UPDATE
                SET abv = EXCLUDED.abv, source_url = EXCLUDED.source_url, updated_at = EXCLUDED.updated_at
            RETURNING `+beverageColumns, uuid.NewString(), rec.BrandName, nullableString(rec.FancifulName),
			rec.ClassTypeDesc, rec.BeverageCategory, abv, nullableString(rec.OriginDesc), rec.SourceURL,
			"ttb_cola_registry", now)

		kb, err := scanBeverageRow(row)
		if err != nil {
			return nil, apperrors.DatabaseError("upsert_batch", err)
		}
		result = append(result, kb)
	}
	return result, nil
}

// noCategoryRule caches the absence of a rule row so repeated lookups for
// an unmigrated category don't each fall through to the database.
var noCategoryRule = &model.CategoryRule{}

// GetCategoryRule infers a beverage category from classType and returns the
// stored range rule for that category, fronted by an in-memory TTL cache
// since the rule table changes only with a migration.
func (c *Cache) GetCategoryRule(ctx context.Context, classType string) (*model.CategoryRule, error) {
	category := inferCategory(classType)

	if cached, ok := c.rules.Get(ctx, string(category)); ok {
		rule := cached.(*model.CategoryRule)
		if rule == noCategoryRule {
			return nil, nil
		}
		return rule, nil
	}

	rule, err := c.fetchCategoryRule(ctx, category)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		c.rules.Set(ctx, string(category), noCategoryRule)
		return nil, nil
	}
	c.rules.Set(ctx, string(category), rule)
	return rule, nil
}

func (c *Cache) fetchCategoryRule(ctx context.Context, category model.BeverageCategory) (*model.CategoryRule, error) {
	row := c.db.QueryRowContext(ctx, `
        SELECT category, min_abv, max_abv, typical_min_abv, typical_max_abv, cfr_reference, description
        FROM beverage_category_rules
        WHERE category = $1
    `, category)

	var rule model.CategoryRule
	var typicalMin, typicalMax sql.NullFloat64
	var cfrRef, description sql.NullString
	err := row.Scan(&rule.Category, &rule.MinABV, &rule.MaxABV, &typicalMin, &typicalMax, &cfrRef, &description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError("get_category_rule", err)
	}
	if typicalMin.Valid {
		rule.TypicalMinABV = &typicalMin.Float64
	}
	if typicalMax.Valid {
		rule.TypicalMaxABV = &typicalMax.Float64
	}
	rule.CFRReference = cfrRef.String
	rule.Description = description.String
	return &rule, nil
}

// inferCategory infers a beverage category from a class/type description by
// keyword priority: wine varietals first, then distilled spirits, then malt
// beverages, defaulting to wine for anything unrecognized.
func inferCategory(classType string) model.BeverageCategory {
	lower := strings.ToLower(classType)

	wineKeywords := []string{"wine", "champagne", "port", "sherry", "dessert", "cabernet", "merlot", "chardonnay", "pinot", "riesling", "zinfandel", "syrah", "malbec"}
	for _, kw := range wineKeywords {
		if strings.Contains(lower, kw) {
			return model.CategoryWine
		}
	}

	spiritsKeywords := []string{"whiskey", "whisky", "bourbon", "gin", "vodka", "rum", "tequila", "brandy", "liqueur", "spirit", "distilled", "mezcal", "cognac"}
	for _, kw := range spiritsKeywords {
		if strings.Contains(lower, kw) {
			return model.CategoryDistilledSpirits
		}
	}

	maltKeywords := []string{"beer", "ale", "lager", "malt", "ipa", "stout", "porter", "pilsner", "pilsener"}
	for _, kw := range maltKeywords {
		if strings.Contains(lower, kw) {
			return model.CategoryMaltBeverage
		}
	}

	return model.CategoryWine
}

const beverageColumns = `id, brand_name, product_name, class_type, beverage_category, abv, standard_size_ml, country_of_origin, producer, source_url, notes, is_verified, source, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBeverageRow(row scanner) (model.KnownBeverage, error) {
	var kb model.KnownBeverage
	var productName, countryOfOrigin, producer, sourceURL, notes sql.NullString
	var standardSize sql.NullFloat64

	err := row.Scan(
		&kb.ID, &kb.BrandName, &productName, &kb.ClassType, &kb.BeverageCategory, &kb.ABV,
		&standardSize, &countryOfOrigin, &producer, &sourceURL, &notes, &kb.IsVerified, &kb.Source,
		&kb.CreatedAt, &kb.UpdatedAt,
	)
	if err != nil {
		return model.KnownBeverage{}, err
	}
	kb.ProductName = productName.String
	kb.CountryOfOrigin = countryOfOrigin.String
	kb.Producer = producer.String
	kb.SourceURL = sourceURL.String
	kb.Notes = notes.String
	if standardSize.Valid {
		kb.StandardSizeML = &standardSize.Float64
	}
	return kb, nil
}

func scanBeverages(rows *sql.Rows) ([]model.KnownBeverage, error) {
	var result []model.KnownBeverage
	for rows.Next() {
		kb, err := scanBeverageRow(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("scan_known_beverage", err)
		}
		result = append(result, kb)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("iterate_known_beverages", err)
	}
	return result, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
