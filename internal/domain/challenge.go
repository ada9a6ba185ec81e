package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category is the fixed set of challenge categories
type Category string

const (
	CategoryWeb           Category = "web"
	CategoryCrypto        Category = "crypto"
	CategorySteganography Category = "steganography"
	CategoryForensics     Category = "forensics"
	CategoryBinary        Category = "binary"
	CategoryMisc          Category = "misc"
)

// Categories lists every category in feature order.
var Categories = []Category{
	CategoryWeb,
	CategoryCrypto,
	CategorySteganography,
	CategoryForensics,
	CategoryBinary,
	CategoryMisc,
}

// categoryAliases maps accepted spellings to categories
var categoryAliases = map[string]Category{
	"web":           CategoryWeb,
	"crypto":        CategoryCrypto,
	"cryptography":  CategoryCrypto,
	"stego":         CategorySteganography,
	"steganography": CategorySteganography,
	"forensics":     CategoryForensics,
	"binary":        CategoryBinary,
	"pwn":           CategoryBinary,
	"reverse":       CategoryBinary,
	"misc":          CategoryMisc,
}

// ParseCategory resolves a category name through the alias table
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	return c.Index() >= 0
}

// Index returns the position of the category in Categories, or -1.
func (c Category) Index() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return -1
}

// Difficulty is an ordered challenge difficulty from 1 (easy) to 5 (insane)
type Difficulty int

const (
	DifficultyEasy   Difficulty = 1
	DifficultyMedium Difficulty = 2
	DifficultyHard   Difficulty = 3
	DifficultyExpert Difficulty = 4
	DifficultyInsane Difficulty = 5
)

// Valid reports whether d is in 1..5
func (d Difficulty) Valid() bool {
	return d >= DifficultyEasy && d <= DifficultyInsane
}

// ClampDifficulty forces v into the valid difficulty range
func ClampDifficulty(v int) Difficulty {
	if v < int(DifficultyEasy) {
		return DifficultyEasy
	}
	if v > int(DifficultyInsane) {
		return DifficultyInsane
	}
	return Difficulty(v)
}

// String returns the display name of the difficulty
func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	case DifficultyExpert:
		return "expert"
	case DifficultyInsane:
		return "insane"
	default:
		return "unknown"
	}
}

// Hint is an authored hint on a challenge
type Hint struct {
	Text string `json:"text"`
	Cost int    `json:"cost"`
}

// Challenge is a scored puzzle
type Challenge struct {
	ID                string
	Title             string
	Category          Category
	Difficulty        Difficulty
	Points            int
	FlagDigest        string // never the plaintext flag
	Hints             []Hint
	SolveCount        int
	AttemptCount      int
	AvgCompletionTime float64 // seconds, meaningful only when SolveCount > 0
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks the static invariants of a challenge definition
func (c *Challenge) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: challenge id is required", ErrInvalidInput)
	}
	if !c.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, c.Category)
	}
	if !c.Difficulty.Valid() {
		return fmt.Errorf("%w: difficulty %d out of range", ErrInvalidInput, c.Difficulty)
	}
	if c.Points < 0 {
		return fmt.Errorf("%w: points must be non-negative", ErrInvalidInput)
	}
	if c.FlagDigest == "" {
		return fmt.Errorf("%w: flag digest is required", ErrInvalidInput)
	}
	if c.SolveCount > c.AttemptCount {
		return fmt.Errorf("%w: solve count exceeds attempt count", ErrInvalidInput)
	}
	return nil
}

// SuccessRate returns solves per attempt in [0,1]
func (c *Challenge) SuccessRate() float64 {
	if c.AttemptCount == 0 {
		return 0
	}
	return min(1.0, float64(c.SolveCount)/float64(c.AttemptCount))
}

// MaxHintLevel returns how many hints can be unlocked. Authored hints bound
// the level; challenges without authored hints fall back to the generated cap.
func (c *Challenge) MaxHintLevel(generatedCap int) int {
	if len(c.Hints) > 0 {
		return len(c.Hints)
	}
	return generatedCap
}

// RecordAttempt counts one attempt against the challenge
func (c *Challenge) RecordAttempt() {
	c.AttemptCount++
}

// RecordSolve counts one solve and folds the completion time into the
// running mean.
func (c *Challenge) RecordSolve(completionSeconds float64) {
	c.SolveCount++
	c.AvgCompletionTime = IncrementalMean(c.AvgCompletionTime, c.SolveCount, completionSeconds)
}

// IncrementalMean returns the mean after adding sample as the n-th value:
// avg' = (avg*(n-1) + sample) / n
func IncrementalMean(avg float64, n int, sample float64) float64 {
	if n <= 1 {
		return sample
	}
	return (avg*float64(n-1) + sample) / float64(n)
}
