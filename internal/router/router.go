package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/malbeclabs/aquabot/internal/chart"
	"github.com/malbeclabs/aquabot/internal/metrics"
	"github.com/malbeclabs/aquabot/internal/store"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	HelpMessage        = "I can help with that. Please specify a district. For graphs, ask something like 'plot recharge for Agra' or 'graph availability for Varanasi'."
	UnavailableMessage = "I am sorry, but I could not load the necessary data to function. Please check the server logs."

	chartNeedsDistrictMessage = "I can plot data, but you need to specify which district."
)

type Intent string

const (
	IntentChart        Intent = "chart"
	IntentChartMetric  Intent = "chart_metric"
	IntentRecharge     Intent = "recharge"
	IntentAvailability Intent = "availability"
	IntentExtraction   Intent = "extraction"
	IntentStatus       Intent = "status"
	IntentBlock        Intent = "block"
	IntentReport       Intent = "report"
	IntentHelp         Intent = "help"
	IntentUnavailable  Intent = "unavailable"
)

var chartKeywords = []string{"plot", "graph", "chart"}

// Response is either a text answer or a chart URL.
type Response struct {
	Answer   string `json:"answer,omitempty"`
	GraphURL string `json:"graph_url,omitempty"`

	Intent Intent `json:"-"`
}

type Renderer interface {
	Render(ctx context.Context, req chart.Request) (string, error)
}

type Config struct {
	Logger   *slog.Logger
	Store    *store.Store
	Renderer Renderer
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Renderer == nil {
		return errors.New("renderer is required")
	}
	return nil
}

type districtMatcher struct {
	district store.District
	pattern  *regexp.Regexp
}

type blockMatcher struct {
	block   store.Block
	pattern *regexp.Regexp
}

// Router answers free-text questions from a store. Matching patterns are
// compiled once in New; a Router is safe for concurrent use.
type Router struct {
	cfg       *Config
	districts []districtMatcher
	blocks    map[string][]blockMatcher
}

func New(cfg *Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		cfg:    cfg,
		blocks: make(map[string][]blockMatcher),
	}
	for _, d := range cfg.Store.Districts() {
		r.districts = append(r.districts, districtMatcher{district: d, pattern: wholeWord(d.Key)})
		if _, ok := r.blocks[d.Key]; ok {
			continue
		}
		var blocks []blockMatcher
		for _, b := range cfg.Store.BlocksIn(d.Key) {
			blocks = append(blocks, blockMatcher{block: b, pattern: wholeWord(b.Key)})
		}
		r.blocks[d.Key] = blocks
	}
	return r, nil
}

// Answer routes question to a chart, a report section, a block condition or
// a help message. Keyword checks run in a fixed order and the first match
// wins.
func (r *Router) Answer(ctx context.Context, question string) Response {
	resp := r.answer(ctx, strings.ToLower(strings.TrimSpace(question)))
	metrics.Questions.WithLabelValues(string(resp.Intent)).Inc()
	r.cfg.Logger.Debug("Answered question", "question", question, "intent", resp.Intent)
	return resp
}

func (r *Router) answer(ctx context.Context, q string) Response {
	if containsAny(q, chartKeywords...) {
		d, ok := r.matchDistrict(q)
		if !ok {
			return Response{Answer: chartNeedsDistrictMessage, Intent: IntentChart}
		}
		if strings.Contains(q, "recharge") {
			return r.chart(ctx, store.Recharge, d)
		}
		if containsAny(q, "availability", "future use") {
			return r.chart(ctx, store.Availability, d)
		}
		return Response{
			Answer: fmt.Sprintf("I can generate a graph for '%s', but please specify what you want to plot (e.g., 'recharge' or 'availability').", title(d.Key)),
			Intent: IntentChartMetric,
		}
	}

	d, ok := r.matchDistrict(q)
	if !ok {
		return Response{Answer: HelpMessage, Intent: IntentHelp}
	}

	switch {
	case containsAny(q, "recharge detail", "recharge data"):
		return Response{Answer: rechargeDetails(d), Intent: IntentRecharge}
	case strings.Contains(q, "availability"):
		return Response{Answer: availabilityDetails(d), Intent: IntentAvailability}
	case containsAny(q, "extraction detail", "extraction data"):
		return Response{Answer: extractionDetails(d), Intent: IntentExtraction}
	case strings.Contains(q, "status"):
		return Response{Answer: statusDetails(d), Intent: IntentStatus}
	case strings.Contains(q, "block"):
		return Response{Answer: r.blockCondition(q, d), Intent: IntentBlock}
	default:
		return Response{Answer: fullReport(d), Intent: IntentReport}
	}
}

func (r *Router) matchDistrict(q string) (store.District, bool) {
	for _, m := range r.districts {
		if m.pattern.MatchString(q) {
			return m.district, true
		}
	}
	return store.District{}, false
}

func (r *Router) blockCondition(q string, d store.District) string {
	for _, m := range r.blocks[d.Key] {
		if m.pattern.MatchString(q) {
			return fmt.Sprintf("The condition of the **%s** block in **%s** is: **%s**.", m.block.Name, m.block.District, m.block.Condition)
		}
	}
	return fmt.Sprintf("I can't find that specific block in %s. Please check the name.", title(d.Key))
}

func (r *Router) chart(ctx context.Context, dataset store.Dataset, d store.District) Response {
	series, ok := r.cfg.Store.Yearly(dataset, d.Key)
	if !ok {
		return Response{
			Answer: fmt.Sprintf("I'm sorry, I couldn't find any yearly %s data for '%s' to plot.", dataset, d.Key),
			Intent: IntentChart,
		}
	}

	url, err := r.renderChart(ctx, dataset, d.Key, series)
	if err != nil {
		r.cfg.Logger.Error("Failed to generate chart", "metric", dataset, "district", d.Key, "error", err)
		return Response{
			Answer: fmt.Sprintf("I'm sorry, something went wrong while creating the %s graph.", dataset),
			Intent: IntentChart,
		}
	}
	return Response{GraphURL: url, Intent: IntentChart}
}

func (r *Router) renderChart(ctx context.Context, dataset store.Dataset, key string, series store.Series) (string, error) {
	values, err := parseValues(series)
	if err != nil {
		return "", err
	}
	name := title(key)
	req := chart.Request{
		Metric:   string(dataset),
		District: key,
		Labels:   series.Years,
		Values:   values,
		XLabel:   "Year",
	}
	switch dataset {
	case store.Recharge:
		req.Title = "Total Annual Ground Water Recharge in " + name
		req.YLabel = "Total Recharge (ham)"
		req.Legend = "Recharge for " + name
		req.Style = chart.SolidBlueCircles
	case store.Availability:
		req.Title = "Net Ground Water Availability For Future Use in " + name
		req.YLabel = "Net Availability (ham)"
		req.Legend = "Availability for " + name
		req.Style = chart.DashedGreenSquares
	default:
		return "", fmt.Errorf("unknown dataset %q", dataset)
	}
	return r.cfg.Renderer.Render(ctx, req)
}

// missingValues are the cell texts read as a missing year rather than a bad
// value. They match the default NA markers of common CSV tooling.
var missingValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// parseValues reads the yearly cells as numbers. Missing cells become NaN and
// are drawn as gaps; any other text that is not a number is an error.
func parseValues(series store.Series) ([]float64, error) {
	values := make([]float64, len(series.Values))
	for i, raw := range series.Values {
		raw = strings.TrimSpace(raw)
		if _, ok := missingValues[raw]; ok {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %s: %w", raw, series.Years[i], err)
		}
		values[i] = v
	}
	return values, nil
}

// wholeWord matches s between word boundaries. Go's \b only treats ASCII
// letters, digits and underscore as word characters.
func wholeWord(s string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// title upper-cases the first letter of every word. Casers are not safe for
// concurrent use, so one is built per call.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
