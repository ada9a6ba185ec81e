package hints

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/flagpost/internal/domain"
)

// TextProvider writes the text for a hint level of a challenge that has no
// authored hint at that level.
type TextProvider interface {
	TextFor(ctx context.Context, c *domain.Challenge, level int) (string, error)
}

// tier groups hint levels into basic, intermediate and advanced
type tier int

const (
	tierBasic tier = iota
	tierIntermediate
	tierAdvanced
)

func tierFor(level int) tier {
	switch {
	case level <= 1:
		return tierBasic
	case level == 2:
		return tierIntermediate
	default:
		return tierAdvanced
	}
}

var templates = map[domain.Category][3]string{
	domain.CategoryWeb: {
		"Look for common web vulnerabilities. Check the page source and inspect HTTP requests.",
		"Focus on %s. Try using developer tools.",
		"Consider SQL injection, XSS, or CSRF. Check authentication mechanisms.",
	},
	domain.CategoryCrypto: {
		"Analyze the encryption pattern. Look for common cipher types.",
		"Consider frequency analysis or known-plaintext attacks.",
		"Try modern cryptanalysis techniques or look for implementation flaws.",
	},
	domain.CategoryForensics: {
		"Examine file headers and metadata. Use forensic tools to extract hidden data.",
		"Look for steganography, deleted files, or hidden partitions.",
		"Perform memory analysis or timeline reconstruction.",
	},
	domain.CategorySteganography: {
		"Something might be hidden in plain sight. Check image properties.",
		"Try LSB analysis or spectral analysis tools.",
		"Consider audio steganography or complex encoding schemes.",
	},
	domain.CategoryBinary: {
		"Use a disassembler or decompiler to understand the code.",
		"Look for interesting strings, functions, or anti-debugging techniques.",
		"Analyze the algorithm, patch protections, or perform dynamic analysis.",
	},
	domain.CategoryMisc: {
		"Read the challenge description again. Every detail may matter.",
		"Identify the file or data format and find a tool that understands it.",
		"Combine techniques from other categories. The solution may take several steps.",
	},
}

// webFocus names the web weakness typical for each difficulty
var webFocus = map[domain.Difficulty]string{
	domain.DifficultyEasy:   "basic input validation and URL parameters",
	domain.DifficultyMedium: "cookie manipulation or session handling",
	domain.DifficultyHard:   "SQL injection or command injection",
	domain.DifficultyExpert: "advanced XSS or CSRF attacks",
	domain.DifficultyInsane: "complex vulnerability chains or race conditions",
}

// TemplateProvider returns fixed per-category hint text. It never fails
// and always returns the same text for the same challenge and level.
type TemplateProvider struct{}

// NewTemplateProvider creates a template provider
func NewTemplateProvider() *TemplateProvider {
	return &TemplateProvider{}
}

func (TemplateProvider) TextFor(_ context.Context, c *domain.Challenge, level int) (string, error) {
	return templateText(c, level), nil
}

func templateText(c *domain.Challenge, level int) string {
	set, ok := templates[c.Category]
	if !ok {
		set = templates[domain.CategoryMisc]
	}
	text := set[tierFor(level)]
	if c.Category == domain.CategoryWeb && tierFor(level) == tierIntermediate {
		focus, ok := webFocus[c.Difficulty]
		if !ok {
			focus = "common web vulnerabilities"
		}
		text = fmt.Sprintf(text, focus)
	}
	return text
}
