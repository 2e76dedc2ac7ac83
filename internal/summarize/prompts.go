package summarize

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt styles selectable by configuration.
const (
	StyleProductManager = "product_manager"
	StyleInvestor       = "investor"
	StyleTechExecutive  = "tech_executive"
	StyleSimple         = "simple"
)

const bulletFormat = `

Format your response as exactly 3-4 bullet points starting with "• ". Each bullet should:
- Start with the most important insight or number
- Be specific and quantifiable when possible
- Be a complete sentence of 15-25 words ending with a period
Do not add any introduction or closing remarks.`

var systemPrompts = map[string]string{
	StyleProductManager: `You are an expert product manager and business analyst. Create executive summaries that highlight:
1. Key business metrics, numbers, and data points (revenue, users, growth %, etc.)
2. Strategic decisions and their business impact
3. Market trends and competitive advantages
4. Technology breakthroughs with quantifiable benefits`,
	StyleInvestor: `You are a venture capital analyst. Focus on:
1. Market size and growth opportunities
2. Competitive positioning and moats
3. Revenue models and unit economics
4. Risk factors and regulatory concerns`,
	StyleTechExecutive: `You are a CTO analyzing technical developments. Focus on:
1. Technical innovations and their business impact
2. Performance improvements with specific metrics
3. Architecture decisions and scalability implications
4. Security, compliance, and operational considerations`,
	StyleSimple: `Summarize this article so that anyone can understand it. Focus on:
1. What happened (the main news)
2. Why it matters (the impact)
3. Key numbers or facts
4. What happens next (if mentioned)`,
}

// Styles lists the known prompt styles in stable order.
func Styles() []string {
	out := make([]string, 0, len(systemPrompts))
	for k := range systemPrompts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidStyle reports whether style names a known prompt; empty is allowed
// and means the default.
func ValidStyle(style string) bool {
	if strings.TrimSpace(style) == "" {
		return true
	}
	_, ok := systemPrompts[style]
	return ok
}

// SystemPrompt returns the system message for style, defaulting to the
// product manager prompt for unknown or empty styles.
func SystemPrompt(style string) string {
	p, ok := systemPrompts[style]
	if !ok {
		p = systemPrompts[StyleProductManager]
	}
	return p + bulletFormat
}

// UserPrompt embeds the title and the content, cut to maxChars runes when
// maxChars is positive.
func UserPrompt(title, content string, maxChars int) string {
	if maxChars > 0 {
		if r := []rune(content); len(r) > maxChars {
			content = string(r[:maxChars])
		}
	}
	var sb strings.Builder
	sb.WriteString("Analyze this article and create a 3-4 bullet executive summary focusing on key business insights and data points.")
	if t := strings.TrimSpace(title); t != "" {
		sb.WriteString(fmt.Sprintf("\n\nTITLE: %s", t))
	}
	sb.WriteString("\n\nARTICLE CONTENT:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nExecutive Summary:")
	return sb.String()
}
