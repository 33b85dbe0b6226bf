package biz

import "time"

// Source 答案引用的一个文档片段。
type Source struct {
	// Document 来源文档名称。
	Document string `json:"document"`
	// Excerpt 片段摘录，超过 200 个字符时截断并追加 "..."。
	Excerpt string `json:"chunk"`
}

// AnswerPackage 一次问答的完整结果。
type AnswerPackage struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	TokensUsed     int      `json:"tokens_used"`
	ResponseTimeMs int64    `json:"response_time_ms"`
	Cached         bool     `json:"cached"`
}

// QueryRecord 写入查询日志的一条记录。
type QueryRecord struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	TokensUsed     int       `json:"tokens_used"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Sources        []Source  `json:"sources"`
	CreatedAt      time.Time `json:"created_at"`
}
