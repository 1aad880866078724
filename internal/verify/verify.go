// Package verify implements the verification engine: it compares a
// vision-model extraction against the submitter's expectations, TTB
// standards, and (optionally) a reference database of known beverages.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/aerocristobal/label-verify/internal/model"
	"github.com/aerocristobal/label-verify/internal/ttbstandards"
)

// Tolerances used throughout the engine.
const (
	Fuzzy               = 0.85
	ABVTolerance        = 0.3
	ClassMatch          = 0.88
	StalenessDays       = 30
	registryABVTolerance = 3.0
	fuzzyABVTolerance    = 2.0
	registryBrandFloor   = 0.80
)

// ReferenceSources groups the external lookups the database-backed
// extension performs. Registry is optional; when nil, verify_with_reference
// degrades gracefully straight to the category-rule step.
type ReferenceSources struct {
	Cache    ReferenceCache
	Registry ReferenceRegistry
}

// ReferenceCache is the subset of the reference cache the engine needs.
type ReferenceCache interface {
	FindWithStaleness(ctx context.Context, brand, classType string, thresholdDays int) (*model.KnownBeverage, bool, error)
	FindByBrand(ctx context.Context, brand string) ([]model.KnownBeverage, error)
	UpsertBatch(ctx context.Context, records []model.RegistryRecord) ([]model.KnownBeverage, error)
	GetCategoryRule(ctx context.Context, classType string) (*model.CategoryRule, error)
}

// ReferenceRegistry is the subset of the TTB registry client the engine needs.
type ReferenceRegistry interface {
	SearchByBrand(ctx context.Context, brand string, category model.BeverageCategory, limit int) ([]model.RegistryRecord, error)
}

func jaroWinkler(a, b string) float64 {
	return smetrics.JaroWinkler(strings.ToLower(a), strings.ToLower(b), 0.7, 4)
}

// Verify runs the base check list: brand/class/ABV against expectations,
// TTB classification and net-contents validity, and presence checks. It
// never errors — pure validation findings surface as non-matching field
// results, not exceptions.
func Verify(extracted model.ExtractedLabelFields, expectedBrand, expectedClass *string, expectedABV *float64) model.VerificationResult {
	var checks []model.FieldVerification

	if expectedBrand != nil {
		checks = append(checks, similarityCheck("brand_name", *expectedBrand, extracted.BrandName, Fuzzy))
	}

	var classification ttbstandards.Classification
	if expectedClass != nil {
		checks = append(checks, similarityCheck("class_type", *expectedClass, extracted.ClassType, Fuzzy))
	}
	if strings.TrimSpace(extracted.ClassType) != "" {
		classification = ttbstandards.ValidateClassification(extracted.ClassType)
		checks = append(checks, model.FieldVerification{
			FieldName:       "class_type_ttb_valid",
			Extracted:       strPtr(extracted.ClassType),
			Matches:         classification.IsValid,
			SimilarityScore: classification.Similarity,
		})
		if classification.SpellingCorrection != "" {
			checks = append(checks, model.FieldVerification{
				FieldName:       "class_type_spelling",
				Extracted:       strPtr(extracted.ClassType),
				Expected:        strPtr(classification.SpellingCorrection),
				Matches:         false,
				SimilarityScore: 0,
			})
		}
		if classification.RequiresCompositionStatement {
			checks = append(checks, model.FieldVerification{
				FieldName:       "composition_statement_required",
				Extracted:       strPtr(extracted.ClassType),
				Matches:         false,
				SimilarityScore: 0,
			})
		}
	}

	if expectedABV != nil {
		diff := absFloat(extracted.ABV - *expectedABV)
		similarity := 1.0
		matches := diff <= ABVTolerance
		if !matches {
			similarity = maxFloat(0, 1-diff/100)
		}
		checks = append(checks, model.FieldVerification{
			FieldName:       "abv",
			Expected:        strPtr(fmt.Sprintf("%.2f", *expectedABV)),
			Extracted:       strPtr(fmt.Sprintf("%.2f", extracted.ABV)),
			Matches:         matches,
			SimilarityScore: similarity,
		})
	}

	var netContents ttbstandards.NetContents
	if strings.TrimSpace(extracted.NetContents) != "" {
		netContents = ttbstandards.ValidateNetContents(extracted.NetContents)
		similarity := 0.0
		if netContents.IsValid {
			similarity = 1.0
		}
		checks = append(checks, model.FieldVerification{
			FieldName:       "net_contents_format",
			Extracted:       strPtr(extracted.NetContents),
			Matches:         netContents.IsValid,
			SimilarityScore: similarity,
		})
	}

	checks = append(checks, presenceChecks(extracted)...)
	checks = append(checks, model.FieldVerification{
		FieldName:       "same_field_of_vision",
		Matches:         extracted.BrandName != "" && extracted.ClassType != "" && extracted.ABV > 0,
		SimilarityScore: boolScore(extracted.BrandName != "" && extracted.ClassType != "" && extracted.ABV > 0),
	})

	return buildResult(checks, model.MatchTypeNone, 0, nil, nil)
}

// VerifyWithReference runs Verify and then the database-backed extension:
// exact reference lookup, registry read-through, fuzzy brand match, and
// category-rule bounds checking, in that order.
func VerifyWithReference(ctx context.Context, extracted model.ExtractedLabelFields, expectedBrand, expectedClass *string, expectedABV *float64, refs ReferenceSources) (model.VerificationResult, error) {
	result := Verify(extracted, expectedBrand, expectedClass, expectedABV)
	checks := result.FieldResults

	matchType := model.MatchTypeNone
	var matchConfidence float64
	var matchedID *string
	var abvDeviation *float64
	var categoryRuleApplied *string
	var warnings []string
	abvExtensionFailed := false

	brand := extracted.BrandName
	class := extracted.ClassType

	if brand != "" && class != "" && refs.Cache != nil {
		hit, stale, err := refs.Cache.FindWithStaleness(ctx, brand, class, StalenessDays)
		if err != nil {
			return model.VerificationResult{}, err
		}
		if hit != nil {
			matchType = model.MatchTypeExact
			matchConfidence = 1.0
			matchedID = strPtr(hit.ID)
			if stale {
				warnings = append(warnings, fmt.Sprintf("reference row for %q from %q is older than %d days", hit.BrandName, hit.Source, StalenessDays))
			}
			deviation := absFloat(extracted.ABV - hit.ABV)
			abvDeviation = &deviation
			abvMatches := deviation <= 1.0
			checks = append(checks, model.FieldVerification{
				FieldName:       "abv_database_match",
				Expected:        strPtr(fmt.Sprintf("%.2f", hit.ABV)),
				Extracted:       strPtr(fmt.Sprintf("%.2f", extracted.ABV)),
				Matches:         abvMatches,
				SimilarityScore: boolScore(abvMatches),
			})
			if !abvMatches {
				abvExtensionFailed = true
			}
		}
	}

	if matchType == model.MatchTypeNone && brand != "" && refs.Registry != nil {
		records, err := refs.Registry.SearchByBrand(ctx, brand, "", 20)
		if err != nil {
			warnings = append(warnings, "TTB registry unavailable: "+err.Error())
		} else if len(records) > 0 {
			var cached []model.KnownBeverage
			if refs.Cache != nil {
				cached, err = refs.Cache.UpsertBatch(ctx, records)
				if err != nil {
					return model.VerificationResult{}, err
				}
			}

			best, bestScore := bestRegistryMatch(records, brand, class)
			if best != nil {
				matchType = model.MatchTypeRegistryLookup
				matchConfidence = bestScore
				matchedID = findCachedID(cached, best.BrandName, best.ClassTypeDesc)

				brandMatches := jaroWinkler(brand, best.BrandName) >= registryBrandFloor
				checks = append(checks, model.FieldVerification{
					FieldName:       "ttb_cola_reference",
					Expected:        strPtr(best.BrandName),
					Extracted:       strPtr(brand),
					Matches:         brandMatches,
					SimilarityScore: jaroWinkler(brand, best.BrandName),
				})

				if best.InferredABV != nil {
					deviation := absFloat(extracted.ABV - *best.InferredABV)
					abvDeviation = &deviation
					abvMatches := deviation <= registryABVTolerance
					checks = append(checks, model.FieldVerification{
						FieldName:       "abv_ttb_cola_reference",
						Expected:        strPtr(fmt.Sprintf("%.2f", *best.InferredABV)),
						Extracted:       strPtr(fmt.Sprintf("%.2f", extracted.ABV)),
						Matches:         abvMatches,
						SimilarityScore: boolScore(abvMatches),
					})
					if !abvMatches {
						abvExtensionFailed = true
					}
				}
			}
		}
	}

	if matchType == model.MatchTypeNone && brand != "" && refs.Cache != nil {
		candidates, err := refs.Cache.FindByBrand(ctx, brand)
		if err != nil {
			return model.VerificationResult{}, err
		}
		if len(candidates) > 0 {
			hit := candidates[0]
			matchType = model.MatchTypeFuzzy
			matchConfidence = jaroWinkler(class, hit.ClassType)
			matchedID = strPtr(hit.ID)
			deviation := absFloat(extracted.ABV - hit.ABV)
			abvDeviation = &deviation
			if deviation > fuzzyABVTolerance {
				checks = append(checks, model.FieldVerification{
					FieldName:       "abv_database_fuzzy_match",
					Expected:        strPtr(fmt.Sprintf("%.2f", hit.ABV)),
					Extracted:       strPtr(fmt.Sprintf("%.2f", extracted.ABV)),
					Matches:         false,
					SimilarityScore: 0,
				})
				abvExtensionFailed = true
			}
		}
	}

	if class != "" && refs.Cache != nil {
		rule, err := refs.Cache.GetCategoryRule(ctx, class)
		if err != nil {
			return model.VerificationResult{}, err
		}
		if rule != nil {
			categoryRuleApplied = strPtr(string(rule.Category))
			if !rule.InHardBounds(extracted.ABV) {
				checks = append(checks, model.FieldVerification{
					FieldName:       "abv_category_range",
					Expected:        strPtr(fmt.Sprintf("[%.1f, %.1f]", rule.MinABV, rule.MaxABV)),
					Extracted:       strPtr(fmt.Sprintf("%.2f", extracted.ABV)),
					Matches:         false,
					SimilarityScore: 0,
				})
				abvExtensionFailed = true
				if matchType == model.MatchTypeNone {
					matchType = model.MatchTypeCategoryOnly
				}
			} else if rule.TypicalMinABV != nil && rule.TypicalMaxABV != nil &&
				(extracted.ABV < *rule.TypicalMinABV || extracted.ABV > *rule.TypicalMaxABV) {
				checks = append(checks, model.FieldVerification{
					FieldName:       "abv_category_typical_range",
					Expected:        strPtr(fmt.Sprintf("[%.1f, %.1f]", *rule.TypicalMinABV, *rule.TypicalMaxABV)),
					Extracted:       strPtr(fmt.Sprintf("%.2f", extracted.ABV)),
					Matches:         true,
					SimilarityScore: 0.7,
				})
			}
		}
	}

	if abvExtensionFailed {
		checks = append(checks, model.FieldVerification{
			FieldName:       "logical_consistency",
			Extracted:       strPtr(fmt.Sprintf("%s at %.2f%% ABV", class, extracted.ABV)),
			Matches:         false,
			SimilarityScore: 0,
		})
	}

	result = buildResult(checks, matchType, matchConfidence, matchedID, abvDeviation)
	result.CategoryRuleApplied = categoryRuleApplied
	result.Warnings = warnings
	if abvExtensionFailed {
		result.Passed = false
	}
	return result, nil
}

func bestRegistryMatch(records []model.RegistryRecord, brand, class string) (*model.RegistryRecord, float64) {
	var best *model.RegistryRecord
	var bestScore float64
	for i := range records {
		rec := &records[i]
		brandScore := jaroWinkler(brand, rec.BrandName)
		if brandScore < registryBrandFloor {
			continue
		}
		score := 0.7*brandScore + 0.3*jaroWinkler(class, rec.ClassTypeDesc)
		if score > bestScore {
			bestScore = score
			best = rec
		}
	}
	return best, bestScore
}

func findCachedID(cached []model.KnownBeverage, brand, class string) *string {
	for _, kb := range cached {
		if strings.EqualFold(kb.BrandName, brand) && strings.EqualFold(kb.ClassType, class) {
			return strPtr(kb.ID)
		}
	}
	return nil
}

func presenceChecks(extracted model.ExtractedLabelFields) []model.FieldVerification {
	var checks []model.FieldVerification
	if extracted.BrandName == "" {
		checks = append(checks, forcedNonMatch("brand_name_present"))
	}
	if extracted.ClassType == "" {
		checks = append(checks, forcedNonMatch("class_type_present"))
	}
	if extracted.ABV <= 0 {
		checks = append(checks, forcedNonMatch("abv_present"))
	}
	if strings.TrimSpace(extracted.NetContents) == "" {
		checks = append(checks, forcedNonMatch("net_contents_present"))
	}
	return checks
}

func forcedNonMatch(field string) model.FieldVerification {
	return model.FieldVerification{FieldName: field, Matches: false, SimilarityScore: 0}
}

func similarityCheck(field, expected, extracted string, threshold float64) model.FieldVerification {
	score := jaroWinkler(expected, extracted)
	return model.FieldVerification{
		FieldName:       field,
		Expected:        strPtr(expected),
		Extracted:       strPtr(extracted),
		Matches:         score >= threshold,
		SimilarityScore: score,
	}
}

func buildResult(checks []model.FieldVerification, matchType model.MatchType, matchConfidence float64, matchedID *string, abvDeviation *float64) model.VerificationResult {
	passed := true
	var sum float64
	for _, c := range checks {
		if !c.Matches {
			passed = false
		}
		sum += c.SimilarityScore
	}
	confidence := 0.0
	if len(checks) > 0 {
		confidence = sum / float64(len(checks))
	}
	return model.VerificationResult{
		Passed:            passed,
		FieldResults:      checks,
		ConfidenceScore:   confidence,
		MatchType:         matchType,
		MatchConfidence:   matchConfidence,
		MatchedBeverageID: matchedID,
		ABVDeviation:      abvDeviation,
	}
}

func strPtr(s string) *string { return &s }

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func boolScore(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
