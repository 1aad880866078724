package ttbstandards

import (
	"testing"

	"github.com/aerocristobal/label-verify/internal/model"
)

func TestValidateClassification_Bourbon(t *testing.T) {
	c := ValidateClassification("Kentucky Straight Bourbon Whiskey")
	if !c.IsValid {
		t.Fatal("expected valid classification")
	}
	if c.Category != model.CategoryDistilledSpirits {
		t.Errorf("category = %v, want distilled_spirits", c.Category)
	}
}

func TestValidateClassification_Wine(t *testing.T) {
	c := ValidateClassification("Cabernet Sauvignon")
	if !c.IsValid || c.Category != model.CategoryWine {
		t.Errorf("got %+v", c)
	}
}

func TestValidateClassification_MaltBeverage(t *testing.T) {
	c := ValidateClassification("India Pale Ale")
	if !c.IsValid || c.Category != model.CategoryMaltBeverage {
		t.Errorf("got %+v", c)
	}
}

func TestValidateClassification_Misspelling(t *testing.T) {
	c := ValidateClassification("Burbon Whiskey")
	if c.SpellingCorrection == "" {
		t.Fatal("expected a spelling correction")
	}
}

func TestValidateClassification_Flavored(t *testing.T) {
	c := ValidateClassification("Chocolate Flavored Brandy")
	if !c.IsFlavored {
		t.Fatal("expected flavored designation detected")
	}
	if c.BaseType != "brandy" {
		t.Errorf("BaseType = %q, want brandy", c.BaseType)
	}
}

func TestValidateClassification_FancifulNameFlagged(t *testing.T) {
	c := ValidateClassification("Mystic Dragon Fire")
	if c.IsValid {
		t.Fatal("expected invalid classification")
	}
	if !c.RequiresCompositionStatement {
		t.Error("expected composition statement requirement")
	}
}

func TestValidateClassification_Empty(t *testing.T) {
	c := ValidateClassification("")
	if c.RequiresCompositionStatement {
		t.Error("empty input must not require a composition statement")
	}
}

func TestValidateNetContents_Milliliters(t *testing.T) {
	nc := ValidateNetContents("750 mL")
	if !nc.IsValid || nc.ValueML != 750 || nc.Unit != "mL" {
		t.Errorf("got %+v", nc)
	}
}

func TestValidateNetContents_Liters(t *testing.T) {
	nc := ValidateNetContents("1.75 L")
	if !nc.IsValid || nc.ValueML != 1750 || nc.Unit != "L" {
		t.Errorf("got %+v", nc)
	}
}

func TestValidateNetContents_FluidOunces(t *testing.T) {
	nc := ValidateNetContents("12 fl oz")
	if !nc.IsValid {
		t.Fatal("expected valid")
	}
	want := 12 * 29.5735
	if diff := nc.ValueML - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ValueML = %v, want %v", nc.ValueML, want)
	}
}

func TestValidateNetContents_NoUnitSmallValue(t *testing.T) {
	nc := ValidateNetContents("1.5")
	if nc.Unit != "L" {
		t.Errorf("Unit = %q, want L for a small unitless value", nc.Unit)
	}
}

func TestValidateNetContents_NoUnitLargeValue(t *testing.T) {
	nc := ValidateNetContents("500")
	if nc.Unit != "mL" {
		t.Errorf("Unit = %q, want mL for a large unitless value", nc.Unit)
	}
}

func TestValidateNetContents_Invalid(t *testing.T) {
	nc := ValidateNetContents("not a measurement")
	if nc.IsValid {
		t.Error("expected invalid net contents")
	}
}
