package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	catalog "github.com/zhouzirui/aura/backend/internal/model/prompt"
)

type scriptBlock struct {
	kind  chat.BlockKind
	title string
	data  any
}

type script struct {
	name     string
	keywords []string
	blocks   func(req chat.StreamRequest) []scriptBlock
}

// ScriptedResponder answers with canned dashboard content picked by keyword.
// It stands in for the model when no credentials are configured.
type ScriptedResponder struct {
	prompts catalog.Store
	delay   time.Duration
	scripts []script
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// NewScriptedResponder builds a responder that waits delay between blocks.
func NewScriptedResponder(prompts catalog.Store, delay time.Duration, logger zerolog.Logger) *ScriptedResponder {
	return &ScriptedResponder{
		prompts: prompts,
		delay:   delay,
		scripts: defaultScripts(),
		log:     logger.With().Str("component", "scripted_responder").Logger(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (r *ScriptedResponder) Name() string { return "scripted" }

// Respond emits the matched script.
func (r *ScriptedResponder) Respond(ctx context.Context, req chat.StreamRequest, emit Emitter) error {
	s := r.match(req.Message)
	r.log.Debug().Str("script", s.name).Msg("answering")

	if err := emitMeta(emit, r.newID(), r.now()); err != nil {
		return err
	}
	for _, b := range s.blocks(req) {
		if err := r.pause(ctx); err != nil {
			return err
		}
		if err := emitBlock(emit, b.kind, b.title, b.data); err != nil {
			return err
		}
	}
	if err := emit.Emit(chat.EventFollowups, followupsFor(r.prompts, req.Message)); err != nil {
		return err
	}
	return emitDone(emit)
}

func (r *ScriptedResponder) match(message string) script {
	text := normalize(message)
	for _, s := range r.scripts {
		for _, kw := range s.keywords {
			if strings.Contains(text, " "+kw+" ") {
				return s
			}
		}
	}
	return fallbackScript
}

func (r *ScriptedResponder) pause(ctx context.Context) error {
	if r.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// normalize lowercases and collapses punctuation so keywords match whole words.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

var fallbackScript = script{
	name: "general",
	blocks: func(req chat.StreamRequest) []scriptBlock {
		text := "I can help with incidents, blast radius, SLO compliance, forecasts and platform health. Ask about any of them to get a live breakdown."
		if len(req.Attachments) > 0 {
			text = fmt.Sprintf("I received %d attachment(s): %s.\n%s", len(req.Attachments), strings.Join(req.Attachments, ", "), text)
		}
		return []scriptBlock{{kind: chat.BlockText, data: text}}
	},
}

func defaultScripts() []script {
	return []script{
		{
			name:     "slo",
			keywords: []string{"slo", "slos", "mttr", "mtta", "alert noise", "false positive"},
			blocks: func(chat.StreamRequest) []scriptBlock {
				return []scriptBlock{
					{kind: chat.BlockText, data: "SLO compliance over the last 30 days. Two services are burning error budget faster than planned."},
					{kind: chat.BlockTable, title: "SLO Compliance", data: TableData{
						Columns: []string{"Service", "Target", "Actual", "Budget Left"},
						Rows: [][]string{
							{"Payment Gateway", "99.95%", "99.91%", "12%"},
							{"Auth Service", "99.9%", "99.94%", "64%"},
							{"Order API", "99.9%", "99.82%", "0%"},
							{"Search", "99.5%", "99.71%", "88%"},
						},
					}},
					{kind: chat.BlockBarChart, title: "MTTR by Service (min)", data: BarChart{
						Bars: []Bar{
							{Name: "Payments", Value: 42, Unit: "m", Color: "#f44336"},
							{Name: "Auth", Value: 18, Unit: "m", Color: "#4caf50"},
							{Name: "Orders", Value: 35, Unit: "m", Color: "#ff9800"},
							{Name: "Search", Value: 12, Unit: "m", Color: "#4caf50"},
						},
					}},
					{kind: chat.BlockRecommendations, data: []Recommendation{
						{Priority: "high", Text: "Freeze non-critical Order API deploys until the budget recovers", Impact: "Prevents further SLO breach"},
						{Priority: "medium", Text: "Raise the latency alert threshold on Search to cut false positives", Impact: "About 30% less alert noise"},
					}},
				}
			},
		},
		{
			name:     "forecast",
			keywords: []string{"forecast", "trend", "trends", "early warning", "risk"},
			blocks: func(chat.StreamRequest) []scriptBlock {
				return []scriptBlock{
					{kind: chat.BlockText, data: "Incident volume is expected to rise mid-week, driven by the scheduled database maintenance window."},
					{kind: chat.BlockLineChart, title: "Incident Forecast", data: LineChart{
						Series: []Series{
							{Key: "actual", Name: "Actual", Color: "#60a5fa"},
							{Key: "forecast", Name: "Forecast", Color: "#ff9800", Dashed: true},
						},
						Points: []map[string]any{
							{"day": "Mon", "actual": 4, "forecast": 4},
							{"day": "Tue", "actual": 6, "forecast": 5},
							{"day": "Wed", "forecast": 9},
							{"day": "Thu", "forecast": 7},
							{"day": "Fri", "forecast": 5},
						},
					}},
					{kind: chat.BlockRecommendations, data: []Recommendation{
						{Priority: "high", Text: "Add on-call coverage for Wednesday's maintenance window"},
						{Priority: "low", Text: "Review connection pool limits ahead of the traffic peak"},
					}},
				}
			},
		},
		{
			name:     "blast_radius",
			keywords: []string{"blast radius", "cascade", "goes down", "fails", "dependency"},
			blocks: func(chat.StreamRequest) []scriptBlock {
				return []scriptBlock{
					{kind: chat.BlockText, data: "A Payment Gateway outage would reach 6 downstream services and 3 customer journeys."},
					{kind: chat.BlockTable, title: "Impacted Services", data: TableData{
						Columns: []string{"Service", "Dependency", "Impact"},
						Rows: [][]string{
							{"Checkout", "direct", "Orders cannot complete"},
							{"Subscriptions", "direct", "Renewals fail"},
							{"Refunds", "indirect", "Delayed processing"},
						},
					}},
					{kind: chat.BlockStatusList, title: "Journey Status", data: []StatusItem{
						{Name: "Checkout", Status: "critical", Detail: "Blocked without payment authorisation"},
						{Name: "Account Signup", Status: "warning", Detail: "Trial conversions degraded"},
						{Name: "Browse Catalogue", Status: "healthy", Detail: "No dependency on payments"},
					}},
				}
			},
		},
		{
			name:     "incidents",
			keywords: []string{"incident", "incidents", "impact", "journey", "journeys"},
			blocks: func(chat.StreamRequest) []scriptBlock {
				return []scriptBlock{
					{kind: chat.BlockText, data: "There are 3 active incidents. One is customer facing."},
					{kind: chat.BlockMetricCards, data: []MetricCard{
						{Label: "Active Incidents", Value: "3", Color: "#f44336", Trend: trend(1)},
						{Label: "Customers Affected", Value: "12.4k", Color: "#ff9800", Trend: trend(-8)},
						{Label: "MTTA", Value: "4m", Color: "#4caf50", Trend: trend(-2)},
					}},
					{kind: chat.BlockStatusList, title: "Active Incidents", data: []StatusItem{
						{Name: "INC-2041 Payment latency", Status: "critical", Detail: "p99 at 2.3s in EMEA", Seal: "P1"},
						{Name: "INC-2039 Search indexing lag", Status: "warning", Detail: "Results up to 10 minutes stale", Seal: "P3"},
						{Name: "INC-2036 CDN cache misses", Status: "warning", Detail: "Elevated origin load", Seal: "P3"},
					}},
					{kind: chat.BlockRecommendations, data: []Recommendation{
						{Priority: "high", Text: "Fail over EMEA payment traffic to the secondary region", Impact: "Restores checkout latency"},
						{Priority: "medium", Text: "Scale the indexing workers for the next hour"},
					}},
				}
			},
		},
		{
			name:     "summary",
			keywords: []string{"summary", "health", "regional", "compare", "overview"},
			blocks: func(chat.StreamRequest) []scriptBlock {
				return []scriptBlock{
					{kind: chat.BlockText, data: "Platform health is stable overall. EMEA carries most of the open risk this week."},
					{kind: chat.BlockMetricCards, data: []MetricCard{
						{Label: "Availability", Value: "99.93%", Color: "#4caf50", Trend: trend(0.02)},
						{Label: "Open Incidents", Value: "3", Color: "#ff9800", Trend: trend(1)},
						{Label: "Change Failure Rate", Value: "4.1%", Color: "#60a5fa", Trend: trend(-0.6)},
					}},
					{kind: chat.BlockPieChart, title: "Incidents by Region", data: PieChart{
						Slices: []Slice{
							{Label: "NA", Value: 5, Color: "#60a5fa"},
							{Label: "EMEA", Value: 9, Color: "#f44336"},
							{Label: "APAC", Value: 3, Color: "#4caf50"},
						},
					}},
					{kind: chat.BlockBarChart, title: "Availability by Region", data: BarChart{
						Bars: []Bar{
							{Name: "NA", Value: 99.97, Unit: "%"},
							{Name: "EMEA", Value: 99.88, Unit: "%"},
							{Name: "APAC", Value: 99.95, Unit: "%"},
						},
					}},
				}
			},
		},
	}
}
