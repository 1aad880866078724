// Package ttbstandards is a pure, no-I/O library of TTB standards of
// identity (27 CFR Parts 4, 5, 7) used to validate class/type designations
// and net-contents declarations extracted from a beverage label.
package ttbstandards

import (
	"strconv"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/aerocristobal/label-verify/internal/model"
)

// ClassMatchThreshold is the minimum Jaro-Winkler similarity for a
// class/type designation to be considered a valid TTB standard.
const ClassMatchThreshold = 0.88

// DistilledSpiritsTypes are the standard distilled spirits designations
// recognized under 27 CFR 5.22.
var DistilledSpiritsTypes = []string{
	"Bourbon Whiskey", "Straight Bourbon Whiskey", "Kentucky Straight Bourbon Whiskey",
	"Tennessee Whiskey", "Rye Whiskey", "Straight Rye Whiskey", "Corn Whiskey",
	"Wheat Whiskey", "Malt Whiskey", "Blended Whiskey", "Light Whiskey",
	"Spirit Whiskey", "Scotch Whisky", "Irish Whiskey", "Canadian Whisky",
	"Whiskey", "Whisky",
	"Vodka",
	"Gin", "Distilled Gin", "London Dry Gin",
	"Rum", "Light Rum", "Dark Rum", "Gold Rum", "Aged Rum", "Spiced Rum",
	"Brandy", "Grape Brandy", "Cognac", "Armagnac", "Pisco", "Calvados",
	"Apple Brandy", "Applejack",
	"Tequila", "Tequila Blanco", "Tequila Reposado", "Tequila Anejo", "Mezcal",
	"Liqueur", "Cordial", "Triple Sec", "Amaretto", "Schnapps",
	"Absinthe", "Aquavit", "Bitters", "Grappa", "Shochu", "Soju", "Baijiu",
	"Cachaca", "Neutral Spirits", "Grain Spirits", "Distilled Spirits Specialty",
}

// WineTypes are the standard wine designations recognized under 27 CFR 4.21,
// including the commonly labeled varietals.
var WineTypes = []string{
	"Grape Wine", "Table Wine", "Red Wine", "White Wine", "Rose Wine", "Rosé",
	"Sparkling Wine", "Champagne", "Prosecco", "Cava", "Dessert Wine",
	"Sherry", "Port", "Madeira", "Marsala", "Vermouth", "Saké", "Sake",
	"Fruit Wine", "Apple Wine", "Cider", "Hard Cider", "Mead", "Honey Wine",
	"Retsina", "Natural Wine", "Fortified Wine", "Aperitif Wine",
	"Cabernet Sauvignon", "Merlot", "Pinot Noir", "Chardonnay",
	"Sauvignon Blanc", "Riesling", "Pinot Grigio", "Pinot Gris", "Zinfandel",
	"Syrah", "Shiraz", "Malbec", "Tempranillo", "Sangiovese", "Moscato",
	"Gewurztraminer",
}

// MaltBeverageTypes are the standard malt beverage designations recognized
// under 27 CFR 7.24.
var MaltBeverageTypes = []string{
	"Beer", "Ale", "Lager", "Stout", "Porter", "Pilsner", "Pilsener",
	"India Pale Ale", "IPA", "Pale Ale", "Wheat Beer", "Hefeweizen",
	"Kolsch", "Kölsch", "Saison", "Bock", "Doppelbock", "Dunkel", "Marzen",
	"Oktoberfest", "Amber Ale", "Brown Ale", "Cream Ale", "Blonde Ale",
	"Golden Ale", "Red Ale", "Scotch Ale", "Barleywine", "Sour Beer", "Gose",
	"Berliner Weisse", "Lambic", "Malt Liquor", "Malt Beverage", "Hard Seltzer",
	"Flavored Malt Beverage",
}

type misspelling struct {
	wrong, correct string
}

// CommonMisspellings maps frequently mistyped class/type terms to their
// correct TTB designation.
var CommonMisspellings = []misspelling{
	{"burbon", "Bourbon"},
	{"bourban", "Bourbon"},
	{"whisky", "Whiskey"},
	{"vodca", "Vodka"},
	{"votka", "Vodka"},
	{"tequlia", "Tequila"},
	{"tequilla", "Tequila"},
	{"liqeur", "Liqueur"},
	{"liquer", "Liqueur"},
	{"liquor", "Liqueur"},
	{"cognack", "Cognac"},
	{"champaign", "Champagne"},
	{"champange", "Champagne"},
	{"cabernet sauvingon", "Cabernet Sauvignon"},
	{"cabernet savignon", "Cabernet Sauvignon"},
	{"chardonay", "Chardonnay"},
	{"chardanay", "Chardonnay"},
	{"rieseling", "Riesling"},
	{"merlo", "Merlot"},
	{"pinot nior", "Pinot Noir"},
	{"zinfandal", "Zinfandel"},
	{"pils", "Pilsner"},
	{"hefeweisen", "Hefeweizen"},
}

func jaroWinkler(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// Classification is the result of validating a class/type designation
// against TTB standards of identity.
type Classification struct {
	Input                       string
	IsValid                     bool
	MatchedStandard             string
	Similarity                  float64
	Category                    model.BeverageCategory
	IsFlavored                  bool
	BaseType                    string
	SpellingCorrection          string
	RequiresCompositionStatement bool
}

// ValidateClassification validates a class/type designation against TTB
// standards. See §4.H: spelling correction, flavored-designation handling,
// and argmax Jaro-Winkler matching across all three vocabularies.
func ValidateClassification(classType string) Classification {
	input := strings.TrimSpace(classType)
	lower := strings.ToLower(input)

	spellingCorrection := checkMisspelling(lower)
	isFlavored, baseType := checkFlavored(lower)

	matchTerm := lower
	if spellingCorrection != "" {
		matchTerm = strings.ToLower(spellingCorrection)
	} else if isFlavored {
		matchTerm = baseType
	}

	bestMatch, bestScore, category := findBestMatch(matchTerm)
	isValid := bestScore >= ClassMatchThreshold
	requiresComposition := !isValid && lower != "" && !isFlavored

	c := Classification{
		Input:                        input,
		IsValid:                      isValid,
		Similarity:                   bestScore,
		IsFlavored:                   isFlavored,
		BaseType:                     baseType,
		SpellingCorrection:           spellingCorrection,
		RequiresCompositionStatement: requiresComposition,
	}
	if isValid {
		c.MatchedStandard = bestMatch
		c.Category = category
	}
	return c
}

// checkMisspelling returns the correction for input when it equals a known
// misspelling, or, unless input is itself a standard designation, when one
// of its words equals one or the whole input scores Jaro-Winkler > 0.95
// against one.
func checkMisspelling(input string) string {
	standard := false
	for _, vocab := range [][]string{DistilledSpiritsTypes, WineTypes, MaltBeverageTypes} {
		for _, s := range vocab {
			standard = standard || input == strings.ToLower(s)
		}
	}
	for _, m := range CommonMisspellings {
		if input == m.wrong || (!standard && jaroWinkler(input, m.wrong) > 0.95) {
			return m.correct
		}
		if !standard {
			for _, word := range strings.Fields(input) {
				if word == m.wrong {
					return m.correct
				}
			}
		}
	}
	return ""
}

func checkFlavored(input string) (bool, string) {
	if idx := strings.Index(input, " flavored "); idx >= 0 {
		base := strings.TrimSpace(input[idx+len(" flavored "):])
		if base != "" {
			return true, base
		}
	}
	if idx := strings.Index(input, "-flavored"); idx >= 0 {
		base := strings.TrimSpace(input[idx+len("-flavored"):])
		if base != "" {
			return true, base
		}
	}
	return false, input
}

func findBestMatch(input string) (string, float64, model.BeverageCategory) {
	var bestMatch string
	var bestScore float64
	var bestCategory model.BeverageCategory

	categories := []struct {
		types    []string
		category model.BeverageCategory
	}{
		{DistilledSpiritsTypes, model.CategoryDistilledSpirits},
		{WineTypes, model.CategoryWine},
		{MaltBeverageTypes, model.CategoryMaltBeverage},
	}

	for _, c := range categories {
		for _, standard := range c.types {
			score := jaroWinkler(input, strings.ToLower(standard))
			if score > bestScore {
				bestScore = score
				bestMatch = standard
				bestCategory = c.category
			}
		}
	}
	return bestMatch, bestScore, bestCategory
}

// NetContents is the result of parsing and normalizing a net-contents
// declaration.
type NetContents struct {
	IsValid bool
	ValueML float64
	Unit    string
}

// ValidateNetContents parses the leading numeric run of s (digits and one
// decimal point) followed by an alphabetic unit, normalizes the unit, and
// converts to milliliters.
func ValidateNetContents(s string) NetContents {
	cleaned := strings.ToLower(strings.TrimSpace(s))

	var numStr, unitStr strings.Builder
	foundDigit := false
	for _, ch := range cleaned {
		switch {
		case ch >= '0' && ch <= '9' || ch == '.':
			numStr.WriteRune(ch)
			foundDigit = true
		case foundDigit && ch != ' ' && ch != '\t':
			unitStr.WriteRune(ch)
		}
	}

	value, err := strconv.ParseFloat(numStr.String(), 64)
	if err != nil {
		return NetContents{}
	}

	unit := normalizeUnit(unitStr.String(), value)
	valueML := value
	switch unit {
	case "L":
		valueML = value * 1000.0
	case "fl oz":
		valueML = value * 29.5735
	}

	return NetContents{IsValid: valueML > 0, ValueML: valueML, Unit: unit}
}

func normalizeUnit(raw string, value float64) string {
	switch raw {
	case "ml", "milliliters", "millilitres":
		return "mL"
	case "l", "liter", "liters", "litre", "litres":
		return "L"
	case "oz", "floz", "fl.oz.", "fl.oz":
		return "fl oz"
	default:
		if value < 10.0 {
			return "L"
		}
		return "mL"
	}
}

