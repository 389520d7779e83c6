package model

// CountHeader is the literal header of every token count table.
var CountHeader = []string{"line_num", "system", "human", "gpt", "total_token_count"}

// TokenCountRow holds per-turn token counts for one record.
type TokenCountRow struct {
	LineNum int `csv:"line_num" json:"line_num"`
	System  int `csv:"system" json:"system"`
	Human   int `csv:"human" json:"human"`
	GPT     int `csv:"gpt" json:"gpt"`
	Total   int `csv:"total_token_count" json:"total_token_count"`
}

// NewTokenCountRow builds a row and fills in the total.
func NewTokenCountRow(line, system, human, gpt int) TokenCountRow {
	return TokenCountRow{
		LineNum: line,
		System:  system,
		Human:   human,
		GPT:     gpt,
		Total:   system + human + gpt,
	}
}

// Consistent reports whether Total equals the sum of the turn counts.
func (r TokenCountRow) Consistent() bool {
	return r.Total == r.System+r.Human+r.GPT
}
