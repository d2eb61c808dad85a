package prompt

// Prompt is one suggestion shown on the assistant welcome screen.
type Prompt struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// Category groups prompts under a heading.
type Category struct {
	Category string   `json:"category"`
	Prompts  []Prompt `json:"prompts"`
}

// Page binds a route path to its categories.
type Page struct {
	Path       string
	Categories []Category
}

// Defaults are shown on the home page and on pages without their own set.
func Defaults() []Category {
	return []Category{
		{
			Category: "General Insights",
			Prompts: []Prompt{
				{Icon: "ErrorOutline", Title: "Incident Analysis", Description: "What are the current active incidents and their impact?", Prompt: "What are the current active incidents and their impact?"},
				{Icon: "Assessment", Title: "Executive Summary", Description: "Give me an executive summary of platform health", Prompt: "Give me an executive summary of platform health"},
			},
		},
		{
			Category: "Performance & Trends",
			Prompts: []Prompt{
				{Icon: "AccountTree", Title: "Blast Radius", Description: "What is the blast radius if the Payment Gateway goes down?", Prompt: "What is the blast radius if the Payment Gateway goes down?"},
				{Icon: "TrendingUp", Title: "Trend Forecast", Description: "What is the incident forecast for next week?", Prompt: "What is the incident forecast for next week?"},
			},
		},
	}
}

// SeedPages provides the page specific prompt sets.
func SeedPages() []Page {
	return []Page{
		{
			Path: "/graph",
			Categories: []Category{{
				Category: "Blast Radius",
				Prompts: []Prompt{
					{Icon: "AccountTree", Title: "Dependency Impact", Description: "What is the blast radius if the Payment Gateway goes down?", Prompt: "What is the blast radius if the Payment Gateway goes down?"},
					{Icon: "ErrorOutline", Title: "Cascade Failures", Description: "Which services would cascade if the Auth Service fails?", Prompt: "Which services would cascade if the Auth Service fails?"},
				},
			}},
		},
		{
			Path: "/applications",
			Categories: []Category{{
				Category: "Application Health",
				Prompts: []Prompt{
					{Icon: "Speed", Title: "SLO Compliance", Description: "Show me the SLO compliance report for all services", Prompt: "Show me the SLO compliance report for all services"},
					{Icon: "Notifications", Title: "Alert Noise", Description: "Which applications have the highest false positive alert rates?", Prompt: "Analyze alert noise and false positive rates across all services"},
				},
			}},
		},
		{
			Path: "/incident-zero",
			Categories: []Category{{
				Category: "Proactive Insights",
				Prompts: []Prompt{
					{Icon: "TrendingUp", Title: "Trend Forecast", Description: "What is the incident forecast for next week?", Prompt: "What is the incident forecast for next week?"},
					{Icon: "ErrorOutline", Title: "Risk Signals", Description: "Are there any early warning signals of potential incidents?", Prompt: "Are there any early warning signals or risk patterns that could lead to incidents?"},
				},
			}},
		},
		{
			Path: "/slo-agent",
			Categories: []Category{{
				Category: "SLO Management",
				Prompts: []Prompt{
					{Icon: "Speed", Title: "SLO Report", Description: "Show me the SLO compliance report for all services", Prompt: "Show me the SLO compliance report for all services"},
					{Icon: "Timer", Title: "MTTR Trends", Description: "Show me the MTTR and MTTA trends for the last quarter", Prompt: "Show me the MTTR and MTTA trends for the last quarter"},
				},
			}},
		},
		{
			Path: "/view-central",
			Categories: []Category{{
				Category: "Dashboard Insights",
				Prompts: []Prompt{
					{Icon: "Assessment", Title: "Executive Summary", Description: "Give me an executive summary of platform health", Prompt: "Give me an executive summary of platform health"},
					{Icon: "Public", Title: "Regional Comparison", Description: "Compare regional operational health across NA, EMEA, and APAC", Prompt: "Compare regional operational health across NA, EMEA, and APAC"},
				},
			}},
		},
		{
			Path: "/customer-journey",
			Categories: []Category{{
				Category: "Customer Experience",
				Prompts: []Prompt{
					{Icon: "ErrorOutline", Title: "Journey Impact", Description: "Which incidents are impacting customer journeys right now?", Prompt: "What are the current active incidents and their impact on customer journeys?"},
					{Icon: "Public", Title: "Regional Health", Description: "Compare regional operational health across NA, EMEA, and APAC", Prompt: "Compare regional operational health across NA, EMEA, and APAC"},
				},
			}},
		},
	}
}
