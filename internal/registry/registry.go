// Package registry is a client for the public TTB COLA (Certificate of
// Label Approval) registry, used as a read-through source when the
// reference cache has no match for a beverage brand.
package registry

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
	"github.com/aerocristobal/label-verify/infrastructure/logging"
	"github.com/aerocristobal/label-verify/infrastructure/resilience"
	"github.com/aerocristobal/label-verify/internal/model"
)

const (
	defaultBaseURL = "https://ttbonline.gov/colasonline"
	userAgent      = "Mozilla/5.0 (compatible; LabelVerifyBot/1.0; +https://github.com/aerocristobal/label-verify)"
	lookbackYears  = 5
)

// Client queries the TTB COLA public registry over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	breaker *resilience.CircuitBreaker

	// Logger, when set, receives a LogRegistryLookup line per search.
	Logger *logging.Logger
}

// New constructs a registry client. baseURL overrides the default TTB
// COLA endpoint when non-empty, mainly for tests. The public registry is
// a best-effort read-through source, so outbound calls run under a
// lenient circuit breaker that tolerates the site's occasional flakiness
// before giving up on it for a cooldown window.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				// The TTB site has recurring certificate issues.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		breaker: resilience.New(resilience.LenientServiceCBConfig(nil)),
	}
}

// SearchByBrand posts a search request scoped to a 5-year completed-date
// window and, when category is non-empty, a category-specific class/type
// code range, and parses the resulting HTML results table.
func (c *Client) SearchByBrand(ctx context.Context, brand string, category model.BeverageCategory, limit int) ([]model.RegistryRecord, error) {
	now := time.Now().UTC()
	from := now.AddDate(-lookbackYears, 0, 0)

	form := url.Values{
		"searchCriteria.dateCompletedFrom":   {from.Format("01/02/2006")},
		"searchCriteria.dateCompletedTo":     {now.Format("01/02/2006")},
		"searchCriteria.productOrFancifulName": {brand},
		"searchCriteria.productNameSearchType": {"E"},
	}
	switch category {
	case model.CategoryWine:
		form.Set("searchCriteria.classTypeFrom", "80")
		form.Set("searchCriteria.classTypeTo", "89")
	case model.CategoryDistilledSpirits:
		form.Set("searchCriteria.classTypeFrom", "100")
		form.Set("searchCriteria.classTypeTo", "699")
	case model.CategoryMaltBeverage:
		form.Set("searchCriteria.classTypeFrom", "900")
		form.Set("searchCriteria.classTypeTo", "999")
	}

	target := c.baseURL + "/publicSearchColasBasicProcess.do?action=search"
	formBody := form.Encode()

	doc, err := c.doSearch(ctx, target, formBody)
	if err != nil {
		if c.Logger != nil {
			c.Logger.LogRegistryLookup(ctx, brand, 0, err)
		}
		return nil, apperrors.ExternalAPIError("ttb_registry", err)
	}

	records := c.parseSearchResults(doc, limit)
	if c.Logger != nil {
		c.Logger.LogRegistryLookup(ctx, brand, len(records), nil)
	}
	return records, nil
}

// doSearch issues the search POST under a circuit breaker and a brief
// retry, since the registry is contacted synchronously from the worker
// loop and a single transient failure shouldn't cost a retry cycle.
func (c *Client) doSearch(ctx context.Context, target, formBody string) (*html.Node, error) {
	var doc *html.Node

	breakerErr := c.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
		}, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(formBody))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("User-Agent", userAgent)

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return errStatus(resp.StatusCode)
			}

			parsed, err := html.Parse(resp.Body)
			if err != nil {
				return err
			}
			doc = parsed
			return nil
		})
	})
	if breakerErr != nil {
		return nil, breakerErr
	}
	return doc, nil
}

type errStatus int

func (e errStatus) Error() string { return "ttb registry returned HTTP " + strconv.Itoa(int(e)) }

// parseSearchResults walks the results table and extracts up to limit
// records. Rows missing a critical field are skipped rather than failing
// the whole parse.
func (c *Client) parseSearchResults(doc *html.Node, limit int) []model.RegistryRecord {
	if strings.Contains(nodeText(doc), "No results were found") {
		return nil
	}

	table := findResultsTable(doc)
	if table == nil {
		return nil
	}

	var records []model.RegistryRecord
	rows := findAll(table, "tr")
	for i, row := range rows {
		if i == 0 {
			continue // header row
		}
		cells := findAll(row, "td")
		if len(cells) < 10 {
			continue
		}

		ttbID := strings.TrimSpace(nodeText(cells[0]))
		permitNo := strings.TrimSpace(nodeText(cells[1]))
		serialNumber := strings.TrimSpace(nodeText(cells[2]))
		completedDateStr := strings.TrimSpace(nodeText(cells[3]))
		fancifulName := strings.TrimSpace(nodeText(cells[4]))
		brandName := strings.TrimSpace(nodeText(cells[5]))
		originCode := strings.TrimSpace(nodeText(cells[6]))
		originDesc := strings.TrimSpace(nodeText(cells[7]))
		classTypeCode := strings.TrimSpace(nodeText(cells[8]))
		classTypeDesc := strings.TrimSpace(nodeText(cells[9]))

		if ttbID == "" || brandName == "" || classTypeDesc == "" {
			continue
		}

		var completedDate *time.Time
		if t, err := time.Parse("01/02/2006", completedDateStr); err == nil {
			completedDate = &t
		}

		sourceURL := resolveDetailURL(c.baseURL, ttbID, cells[0])

		rec := model.RegistryRecord{
			TTBID:            ttbID,
			PermitNo:         permitNo,
			SerialNumber:     serialNumber,
			CompletedDate:    completedDate,
			FancifulName:     fancifulName,
			BrandName:        brandName,
			OriginCode:       originCode,
			OriginDesc:       originDesc,
			ClassTypeCode:    classTypeCode,
			ClassTypeDesc:    classTypeDesc,
			SourceURL:        sourceURL,
			InferredABV:      InferABV(classTypeDesc),
			BeverageCategory: InferCategory(classTypeDesc, classTypeCode),
		}
		records = append(records, rec)

		if len(records) >= limit {
			break
		}
	}
	return records
}

func resolveDetailURL(baseURL, ttbID string, firstCell *html.Node) string {
	for _, a := range findAll(firstCell, "a") {
		for _, attr := range a.Attr {
			if attr.Key == "href" && attr.Val != "" {
				if strings.HasPrefix(attr.Val, "http") {
					return attr.Val
				}
				return baseURL + "/" + attr.Val
			}
		}
	}
	return baseURL + "/viewColaDetails.do?action=publicDisplaySearchBasic&ttbid=" + ttbID
}

func findResultsTable(doc *html.Node) *html.Node {
	for _, table := range findAll(doc, "table") {
		text := nodeText(table)
		if strings.Contains(text, "TTB ID") && strings.Contains(text, "Brand Name") && strings.Contains(text, "Class/Type") {
			return table
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

// InferABV infers alcohol content from a TTB class/type description, since
// COLA search results do not carry ABV directly.
func InferABV(classTypeDesc string) *float64 {
	normalized := strings.ToUpper(classTypeDesc)
	abv := func(v float64) *float64 { return &v }

	switch {
	case containsAny(normalized, "DESSERT", "PORT", "SHERRY", "COOKING"):
		return abv(18.0)
	case containsAny(normalized, "TABLE WINE", "WHITE WINE", "RED WINE"):
		return abv(12.0)
	case containsAny(normalized, "SPARKLING", "CHAMPAGNE"):
		return abv(12.0)
	case containsAny(normalized, "WHISKEY", "WHISKY", "BOURBON"):
		return abv(45.0)
	case containsAny(normalized, "GIN"):
		return abv(40.0)
	case containsAny(normalized, "VODKA"):
		return abv(40.0)
	case containsAny(normalized, "RUM"):
		return abv(40.0)
	case containsAny(normalized, "TEQUILA"):
		return abv(40.0)
	case containsAny(normalized, "BRANDY"):
		return abv(40.0)
	case containsAny(normalized, "IPA", "INDIA PALE ALE"):
		return abv(6.5)
	case containsAny(normalized, "STOUT", "PORTER"):
		return abv(6.0)
	case containsAny(normalized, "BEER", "LAGER", "ALE"):
		return abv(5.0)
	case containsAny(normalized, "MALT BEVERAGE"):
		return abv(5.0)
	case containsAny(normalized, "WINE"):
		return abv(12.0)
	case containsAny(normalized, "SPIRIT", "LIQUOR", "LIQUEUR"):
		return abv(40.0)
	case containsAny(normalized, "MALT"):
		return abv(5.0)
	default:
		return nil
	}
}

// InferCategory maps a TTB class/type to a beverage category, preferring
// keyword matches and falling back to the class/type code's numeric range.
func InferCategory(classTypeDesc, classTypeCode string) model.BeverageCategory {
	normalized := strings.ToUpper(classTypeDesc)

	if containsAny(normalized, "WINE", "CHAMPAGNE", "PORT", "SHERRY", "DESSERT", "TABLE") {
		return model.CategoryWine
	}
	if containsAny(normalized, "WHISKEY", "WHISKY", "BOURBON", "GIN", "VODKA", "RUM", "TEQUILA", "BRANDY", "LIQUEUR", "SPIRIT", "DISTILLED") {
		return model.CategoryDistilledSpirits
	}
	if containsAny(normalized, "BEER", "ALE", "LAGER", "MALT", "IPA", "STOUT", "PORTER") {
		return model.CategoryMaltBeverage
	}

	if code, err := strconv.Atoi(classTypeCode); err == nil {
		switch {
		case code >= 80 && code <= 89:
			return model.CategoryWine
		case code >= 100 && code <= 699:
			return model.CategoryDistilledSpirits
		case code >= 900 && code <= 999:
			return model.CategoryMaltBeverage
		}
	}

	return model.CategoryWine
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
