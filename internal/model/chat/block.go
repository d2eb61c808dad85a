package chat

import "encoding/json"

// BlockKind tags the payload carried by a ContentBlock.
type BlockKind string

const (
	BlockText            BlockKind = "text"
	BlockMetricCards     BlockKind = "metric_cards"
	BlockTable           BlockKind = "table"
	BlockBarChart        BlockKind = "bar_chart"
	BlockLineChart       BlockKind = "line_chart"
	BlockPieChart        BlockKind = "pie_chart"
	BlockStatusList      BlockKind = "status_list"
	BlockRecommendations BlockKind = "recommendations"
)

// Known reports whether a renderer exists for the kind.
func (k BlockKind) Known() bool {
	switch k {
	case BlockText, BlockMetricCards, BlockTable, BlockBarChart,
		BlockLineChart, BlockPieChart, BlockStatusList, BlockRecommendations:
		return true
	}
	return false
}

// ContentBlock is one typed unit of assistant content. Data is opaque here and
// only forwarded to whoever renders it.
type ContentBlock struct {
	Type  BlockKind       `json:"type"`
	Title string          `json:"title,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// TextBlock builds a text block from a plain string.
func TextBlock(text string) ContentBlock {
	data, _ := json.Marshal(text)
	return ContentBlock{Type: BlockText, Data: data}
}

func (b ContentBlock) Clone() ContentBlock {
	if b.Data != nil {
		b.Data = append(json.RawMessage(nil), b.Data...)
	}
	return b
}
