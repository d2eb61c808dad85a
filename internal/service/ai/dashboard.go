package ai

// Payload shapes understood by the dashboard block renderers.

type MetricCard struct {
	Label string   `json:"label"`
	Value string   `json:"value"`
	Color string   `json:"color,omitempty"`
	Trend *float64 `json:"trend,omitempty"`
}

type TableData struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type Bar struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	Color string  `json:"color,omitempty"`
}

type BarChart struct {
	Bars []Bar  `json:"bars"`
	XKey string `json:"xKey,omitempty"`
	YKey string `json:"yKey,omitempty"`
}

type Series struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Dashed bool   `json:"dashed,omitempty"`
}

type LineChart struct {
	Series []Series         `json:"series"`
	Points []map[string]any `json:"points"`
}

type Slice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

type PieChart struct {
	Slices []Slice `json:"slices"`
}

// Status values: critical, warning, healthy.
type StatusItem struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail"`
	Seal   string `json:"seal,omitempty"`
}

// Priority values: high, medium, low.
type Recommendation struct {
	Priority string `json:"priority"`
	Text     string `json:"text"`
	Impact   string `json:"impact,omitempty"`
}

func trend(v float64) *float64 { return &v }
