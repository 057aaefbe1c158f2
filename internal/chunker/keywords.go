package chunker

import (
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}{3,}`)

// stopwords 过滤掉无信息量的功能词，避免其占据关键词名额。
var stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	words := []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
		"had", "has", "have", "was", "were", "been", "being", "this", "that",
		"these", "those", "with", "from", "they", "them", "their", "will",
		"would", "should", "could", "what", "when", "where", "which", "while",
		"than", "then", "there", "here", "each", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below",
		"over", "under", "again", "also", "more", "most", "other", "some",
		"only", "very", "same", "its", "his", "her", "him", "she", "our",
		"out", "off", "own", "too", "how", "who", "whom", "why", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ExtractKeywords 对非停用词 token 做频率加权打分，返回前 max 个关键词。
// 与分块策略无关；同频词按首次出现位置排序，保证结果确定。
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return nil
	}

	freq := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, tok := range tokens {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		if _, seen := freq[tok]; !seen {
			firstSeen[tok] = i
		}
		freq[tok]++
	}
	if len(freq) == 0 {
		return nil
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})

	if len(words) > max {
		words = words[:max]
	}
	return words
}
