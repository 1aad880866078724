package refcache

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/aerocristobal/label-verify/internal/model"
)

func TestFindExact_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM known_beverages").WillReturnRows(
		sqlmock.NewRows(beverageColumnNames()),
	)

	c := New(db)
	rows, err := c.FindExact(context.Background(), "Fetzer", "Table Red Wine")
	if err != nil {
		t.Fatalf("FindExact() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}

func TestFindExact_Hit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM known_beverages").WillReturnRows(
		sqlmock.NewRows(beverageColumnNames()).AddRow(
			"bev-1", "Fetzer", nil, "Table Red Wine", model.CategoryWine, 12.5, nil, nil, nil, nil, nil, true, "ttb_cola_registry", now, now,
		),
	)

	c := New(db)
	rows, err := c.FindExact(context.Background(), "Fetzer", "Table Red Wine")
	if err != nil {
		t.Fatalf("FindExact() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].ABV != 12.5 {
		t.Errorf("ABV = %v, want 12.5", rows[0].ABV)
	}
}

func TestFindWithStaleness_Fresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM known_beverages").WillReturnRows(
		sqlmock.NewRows(beverageColumnNames()).AddRow(
			"bev-1", "Fetzer", nil, "Table Red Wine", model.CategoryWine, 12.5, nil, nil, nil, nil, nil, true, "ttb_cola_registry", now, now,
		),
	)

	c := New(db)
	hit, stale, err := c.FindWithStaleness(context.Background(), "Fetzer", "Table Red Wine", 30)
	if err != nil {
		t.Fatalf("FindWithStaleness() error = %v", err)
	}
	if hit == nil {
		t.Fatal("expected a hit")
	}
	if stale {
		t.Error("expected fresh, got stale")
	}
}

func TestFindWithStaleness_Stale(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	old := time.Now().UTC().Add(-31 * 24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM known_beverages").WillReturnRows(
		sqlmock.NewRows(beverageColumnNames()).AddRow(
			"bev-1", "Fetzer", nil, "Table Red Wine", model.CategoryWine, 12.5, nil, nil, nil, nil, nil, true, "ttb_cola_registry", old, old,
		),
	)

	c := New(db)
	_, stale, err := c.FindWithStaleness(context.Background(), "Fetzer", "Table Red Wine", 30)
	if err != nil {
		t.Fatalf("FindWithStaleness() error = %v", err)
	}
	if !stale {
		t.Error("expected stale")
	}
}

func TestGetCategoryRule_Wine(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT category, min_abv").WillReturnRows(
		sqlmock.NewRows([]string{"category", "min_abv", "max_abv", "typical_min_abv", "typical_max_abv", "cfr_reference", "description"}).
			AddRow("wine", 0.5, 24.0, 8.0, 16.0, "27 CFR Part 4", "Wine"),
	)

	c := New(db)
	rule, err := c.GetCategoryRule(context.Background(), "Cabernet Sauvignon")
	if err != nil {
		t.Fatalf("GetCategoryRule() error = %v", err)
	}
	if rule == nil {
		t.Fatal("expected a rule")
	}
	if rule.Category != model.CategoryWine {
		t.Errorf("Category = %v, want wine", rule.Category)
	}
	if !rule.InHardBounds(12.0) {
		t.Error("expected 12.0 within wine bounds")
	}
}

func TestInferCategory(t *testing.T) {
	cases := []struct {
		classType string
		want      model.BeverageCategory
	}{
		{"Table Red Wine", model.CategoryWine},
		{"Straight Bourbon Whiskey", model.CategoryDistilledSpirits},
		{"India Pale Ale", model.CategoryMaltBeverage},
		{"Something Unrecognized", model.CategoryWine},
	}
	for _, tc := range cases {
		if got := inferCategory(tc.classType); got != tc.want {
			t.Errorf("inferCategory(%q) = %v, want %v", tc.classType, got, tc.want)
		}
	}
}

func beverageColumnNames() []string {
	return []string{
		"id", "brand_name", "product_name", "class_type", "beverage_category", "abv",
		"standard_size_ml", "country_of_origin", "producer", "source_url", "notes",
		"is_verified", "source", "created_at", "updated_at",
	}
}
