package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aerocristobal/label-verify/internal/model"
)

func TestSearchByBrand_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("No results were found for your search criteria"))
	}))
	defer server.Close()

	c := New(server.URL)
	records, err := c.SearchByBrand(context.Background(), "Nonexistent Brand", "", 10)
	if err != nil {
		t.Fatalf("SearchByBrand() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestSearchByBrand_ParsesTable(t *testing.T) {
	const body = `
	<html><body>
	<table>
		<tr><th>TTB ID</th><th>Permit</th><th>Serial</th><th>Date</th><th>Fanciful</th>
			<th>Brand Name</th><th>Origin</th><th>Origin Desc</th><th>Class/Type</th><th>Class/Type Desc</th></tr>
		<tr>
			<td><a href="viewColaDetails.do?ttbid=123">123</a></td>
			<td>BWN-CA-12345</td>
			<td>250001</td>
			<td>01/15/2026</td>
			<td>Reserve</td>
			<td>FETZER</td>
			<td>06</td>
			<td>CALIFORNIA</td>
			<td>80</td>
			<td>TABLE RED WINE</td>
		</tr>
	</table>
	</body></html>
	`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	c := New(server.URL)
	records, err := c.SearchByBrand(context.Background(), "Fetzer", model.CategoryWine, 10)
	if err != nil {
		t.Fatalf("SearchByBrand() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.BrandName != "FETZER" {
		t.Errorf("BrandName = %q, want FETZER", rec.BrandName)
	}
	if rec.ClassTypeDesc != "TABLE RED WINE" {
		t.Errorf("ClassTypeDesc = %q", rec.ClassTypeDesc)
	}
	if rec.InferredABV == nil || *rec.InferredABV != 12.0 {
		t.Errorf("InferredABV = %v, want 12.0", rec.InferredABV)
	}
	if rec.BeverageCategory != model.CategoryWine {
		t.Errorf("BeverageCategory = %v, want wine", rec.BeverageCategory)
	}
	if rec.FancifulName != "Reserve" {
		t.Errorf("FancifulName = %q, want Reserve", rec.FancifulName)
	}
}

func TestSearchByBrand_SkipsIncompleteRows(t *testing.T) {
	const body = `
	<html><body>
	<table>
		<tr><th>TTB ID</th><th>Brand Name</th><th>Class/Type</th></tr>
		<tr><td></td><td></td></tr>
	</table>
	</body></html>
	`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	c := New(server.URL)
	records, err := c.SearchByBrand(context.Background(), "X", "", 10)
	if err != nil {
		t.Fatalf("SearchByBrand() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestInferABV(t *testing.T) {
	cases := map[string]float64{
		"TABLE RED WINE":   12.0,
		"DESSERT WINE":     18.0,
		"STRAIGHT BOURBON WHISKY": 45.0,
		"VODKA":            40.0,
		"IPA":              6.5,
		"STOUT":            6.0,
		"BEER":             5.0,
	}
	for desc, want := range cases {
		got := InferABV(desc)
		if got == nil || *got != want {
			t.Errorf("InferABV(%q) = %v, want %v", desc, got, want)
		}
	}
	if InferABV("SOMETHING UNKNOWN") != nil {
		t.Error("expected nil for unrecognized class type")
	}
}

func TestInferCategory(t *testing.T) {
	if got := InferCategory("TABLE RED WINE", "80"); got != model.CategoryWine {
		t.Errorf("got %v, want wine", got)
	}
	if got := InferCategory("STRAIGHT BOURBON WHISKEY", "170"); got != model.CategoryDistilledSpirits {
		t.Errorf("got %v, want distilled_spirits", got)
	}
	if got := InferCategory("BEER", "901"); got != model.CategoryMaltBeverage {
		t.Errorf("got %v, want malt_beverage", got)
	}
	if got := InferCategory("UNKNOWN", "500"); got != model.CategoryDistilledSpirits {
		t.Errorf("fallback by code: got %v, want distilled_spirits", got)
	}
	if got := InferCategory("UNKNOWN", "0"); got != model.CategoryWine {
		t.Errorf("default fallback: got %v, want wine", got)
	}
}
