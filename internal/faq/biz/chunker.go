package biz

import (
	"fmt"
	"strings"
)

// Chunker 将文档文本切分为有重叠的片段。
// 长度以字符（rune）计，而不是字节。
type Chunker struct {
	size    int
	overlap int
}

// NewChunker 创建切分器。size 必须为正数，overlap 必须在 [0, size) 之间。
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrConfiguration, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size 返回窗口大小。
func (c *Chunker) Size() int { return c.size }

// Overlap 返回相邻片段的重叠字符数。
func (c *Chunker) Overlap() int { return c.overlap }

// Split 切分文本。
//
// 窗口未到达文本末尾时，在窗口内向后查找最后一个 '.' 或 '\n'；
// 若该位置超过窗口一半，则在其后截断，下一个窗口从截断处开始；
// 否则保留整个窗口，下一个窗口从 end-overlap 开始。
func (c *Chunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)

	var chunks []string
	for start := 0; start < n; {
		end := start + c.size
		if end >= n {
			chunks = appendChunk(chunks, runes[start:n])
			break
		}

		next := end - c.overlap
		if bp := lastBoundary(runes[start:end]); bp > c.size/2 {
			end = start + bp + 1
			next = end
		}

		chunks = appendChunk(chunks, runes[start:end])
		start = next
	}
	return chunks
}

func appendChunk(chunks []string, piece []rune) []string {
	if s := strings.TrimSpace(string(piece)); s != "" {
		return append(chunks, s)
	}
	return chunks
}

// lastBoundary 返回窗口内最后一个句号或换行符的偏移，不存在时返回 -1。
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}

// truncateRunes 截断到 n 个字符，用于日志与摘录。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
