// Package markdown strips markup symbols from final answer text so clients
// render plain prose.
package markdown

import (
	"regexp"
	"strings"
)

// The transformation table. Order matters: fenced blocks are unwrapped before
// inline code, links before emphasis.
var (
	reFence       = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\n?(.*?)\n?```")
	reInlineCode  = regexp.MustCompile("`([^`\n]*)`")
	reImage       = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]*)\)`)
	reLink        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reHeader      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBold        = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	reItalic      = regexp.MustCompile(`\*([^*\n]+)\*|_([^_\n]+)_`)
	reBullet      = regexp.MustCompile(`(?m)^(\s*)\*(\s+)`)
	reHRule       = regexp.MustCompile(`(?m)^(\s*)(-{3,}|\*{3,}|_{3,})\s*$`)
	reBlockquote  = regexp.MustCompile(`(?m)^\s*>\s?`)
	reBlankRuns   = regexp.MustCompile(`\n{3,}`)
)

// Normalize applies the substitution table: strip headers, bold/italic
// markers and inline code, unwrap fenced blocks keeping the body, replace
// list bullets `*` with `-`, unwrap link and image syntaxes, drop horizontal
// rules and blockquote prefixes, and collapse three or more consecutive
// blank lines to two.
func Normalize(text string) string {
	out := text

	out = reFence.ReplaceAllString(out, "$1")
	out = reImage.ReplaceAllString(out, "$1")
	out = reLink.ReplaceAllString(out, "$1 ($2)")
	out = reHeader.ReplaceAllString(out, "")
	out = reBold.ReplaceAllString(out, "$1$2")
	out = reHRule.ReplaceAllString(out, "")
	out = reBullet.ReplaceAllString(out, "$1-$2")
	out = reItalic.ReplaceAllString(out, "$1$2")
	out = reInlineCode.ReplaceAllString(out, "$1")
	out = reBlockquote.ReplaceAllString(out, "")
	out = reBlankRuns.ReplaceAllString(out, "\n\n")

	return strings.TrimSpace(out)
}
