// Package model defines the data types shared by the job store, queue,
// vision client, reference cache, and verification engine.
package model

import "time"

// JobStatus enumerates verification job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a label-verification unit of work. Created by the intake
// service, mutated only by the worker, never deleted.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	ImageKey  string    `json:"image_key"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`

	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`

	ExtractedFields     *ExtractedLabelFields `json:"extracted_fields,omitempty"`
	VerificationResult  *VerificationResult   `json:"verification_result,omitempty"`
}

// QueuedJob is the payload carried on the reliable queue. Equality is by
// byte-identical JSON serialization, which the queue relies on to find
// and remove an entry from its in-flight set.
type QueuedJob struct {
	JobID         string   `json:"job_id"`
	ImageKey      string   `json:"image_key"`
	ExpectedBrand *string  `json:"expected_brand,omitempty"`
	ExpectedClass *string  `json:"expected_class,omitempty"`
	ExpectedABV   *float64 `json:"expected_abv,omitempty"`
}

// ExtractedLabelFields is the structured output of the vision-model client.
type ExtractedLabelFields struct {
	BrandName         string  `json:"brand_name"`
	ClassType         string  `json:"class_type"`
	ABV               float64 `json:"abv"`
	NetContents       string  `json:"net_contents"`
	CountryOfOrigin   string  `json:"country_of_origin,omitempty"`
	GovernmentWarning string  `json:"government_warning,omitempty"`
}

// FieldVerification is the outcome of comparing one extracted field
// against an expectation.
type FieldVerification struct {
	FieldName       string   `json:"field_name"`
	Expected        *string  `json:"expected,omitempty"`
	Extracted       *string  `json:"extracted,omitempty"`
	Matches         bool     `json:"matches"`
	SimilarityScore float64  `json:"similarity_score"`
}

// MatchType enumerates how a Known Beverage was (or wasn't) matched.
type MatchType string

const (
	MatchTypeNone           MatchType = "no_match"
	MatchTypeCategoryOnly   MatchType = "category_only"
	MatchTypeFuzzy          MatchType = "fuzzy"
	MatchTypeExact          MatchType = "exact"
	MatchTypeRegistryLookup MatchType = "registry_lookup"
)

// VerificationResult is the verification engine's complete report for a job.
type VerificationResult struct {
	Passed              bool                 `json:"passed"`
	FieldResults        []FieldVerification  `json:"field_results"`
	ConfidenceScore     float64              `json:"confidence_score"`
	MatchType           MatchType            `json:"match_type"`
	MatchConfidence     float64              `json:"match_confidence"`
	MatchedBeverageID   *string              `json:"matched_beverage_id,omitempty"`
	ABVDeviation        *float64             `json:"abv_deviation,omitempty"`
	CategoryRuleApplied *string              `json:"category_rule_applied,omitempty"`
	Warnings            []string             `json:"warnings,omitempty"`
}

// BeverageCategory enumerates the three TTB-regulated beverage classes.
type BeverageCategory string

const (
	CategoryWine              BeverageCategory = "wine"
	CategoryDistilledSpirits  BeverageCategory = "distilled_spirits"
	CategoryMaltBeverage      BeverageCategory = "malt_beverage"
)

// KnownBeverage is a reference-cache row, either seeded from the TTB COLA
// registry or backfilled on a cache miss.
type KnownBeverage struct {
	ID                string           `json:"id"`
	BrandName         string           `json:"brand_name"`
	ProductName       string           `json:"product_name,omitempty"`
	ClassType         string           `json:"class_type"`
	BeverageCategory  BeverageCategory `json:"beverage_category"`
	ABV               float64          `json:"abv"`
	StandardSizeML    *float64         `json:"standard_size_ml,omitempty"`
	CountryOfOrigin   string           `json:"country_of_origin,omitempty"`
	Producer          string           `json:"producer,omitempty"`
	SourceURL         string           `json:"source_url,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	IsVerified        bool             `json:"is_verified"`
	Source            string           `json:"source"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// IsStale reports whether the row was created more than staleDays ago.
func (k KnownBeverage) IsStale(now time.Time, staleDays int) bool {
	return now.Sub(k.CreatedAt) > time.Duration(staleDays)*24*time.Hour
}

// CategoryRule defines the ABV bounds and regulatory citation for a
// beverage category.
type CategoryRule struct {
	Category       BeverageCategory `json:"category"`
	MinABV         float64          `json:"min_abv"`
	MaxABV         float64          `json:"max_abv"`
	TypicalMinABV  *float64         `json:"typical_min_abv,omitempty"`
	TypicalMaxABV  *float64         `json:"typical_max_abv,omitempty"`
	CFRReference   string           `json:"cfr_reference,omitempty"`
	Description    string           `json:"description,omitempty"`
}

// InHardBounds reports whether abv falls within the category's min/max.
func (c CategoryRule) InHardBounds(abv float64) bool {
	return abv >= c.MinABV && abv <= c.MaxABV
}

// RegistryRecord is a canonical row scraped from the TTB COLA public registry.
type RegistryRecord struct {
	TTBID            string           `json:"ttb_id"`
	PermitNo         string           `json:"permit_no"`
	SerialNumber     string           `json:"serial_number"`
	CompletedDate    *time.Time       `json:"completed_date,omitempty"`
	FancifulName     string           `json:"fanciful_name,omitempty"`
	BrandName        string           `json:"brand_name"`
	OriginCode       string           `json:"origin_code"`
	OriginDesc       string           `json:"origin_desc"`
	ClassTypeCode    string           `json:"class_type_code"`
	ClassTypeDesc    string           `json:"class_type_desc"`
	SourceURL        string           `json:"source_url"`
	InferredABV      *float64         `json:"inferred_abv,omitempty"`
	BeverageCategory BeverageCategory `json:"beverage_category"`
}

// MatchHistoryEntry records one verification engine decision for audit
// and analytics, written by the Job Store alongside the job update.
type MatchHistoryEntry struct {
	ID                 int64     `json:"id"`
	JobID              string    `json:"job_id"`
	MatchedBeverageID  *string   `json:"matched_beverage_id,omitempty"`
	MatchType          MatchType `json:"match_type"`
	MatchConfidence    *float64  `json:"match_confidence,omitempty"`
	ABVDeviation       *float64  `json:"abv_deviation,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
