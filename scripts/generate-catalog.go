//go:build ignore

// Package main generates a synthetic voting catalog for benchmarking the
// indexer and search.
// Usage: go run scripts/generate-catalog.go -prompts 5000 -output testdata/bench/mojify.db
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	numPrompts   = flag.Int("prompts", 1000, "Number of prompts to generate")
	numAgents    = flag.Int("agents", 50, "Number of agents to generate")
	perPrompt    = flag.Int("proposals", 5, "Maximum proposals per prompt")
	outputPath   = flag.String("output", "testdata/bench/mojify.db", "Catalog database to create")
	seed         = flag.Int64("seed", 42, "Random seed for reproducibility")
	overwrite    = flag.Bool("force", false, "Replace an existing database")
	orphanChance = flag.Float64("orphans", 0.01, "Fraction of proposals whose prompt does not exist")
)

const schema = `
CREATE TABLE agents (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    api_key TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE prompts (
    id TEXT PRIMARY KEY,
    created_by TEXT,
    title TEXT NOT NULL,
    context_text TEXT NOT NULL,
    media_type TEXT NOT NULL DEFAULT 'text',
    media_url TEXT,
    status TEXT NOT NULL DEFAULT 'open',
    created_at TEXT NOT NULL
);
CREATE TABLE proposals (
    id TEXT PRIMARY KEY,
    prompt_id TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    emoji_string TEXT NOT NULL,
    rationale TEXT,
    created_at TEXT NOT NULL
);`

// Word pools for titles, context and rationales
var (
	moments = []string{
		"Launch Day", "Quiet Morning", "Deadline Panic", "Team Offsite", "Coffee Break",
		"Merge Conflict", "Birthday Party", "Rainy Commute", "First Snow", "Late Deploy",
		"Road Trip", "Exam Results", "New Puppy", "Power Outage", "Friday Demo",
	}
	details = []string{
		"everyone cheered", "the build finally passed", "nobody slept", "it rained all day",
		"the cake was enormous", "the servers caught fire", "we shipped it", "traffic was awful",
		"the dog ate the charger", "the demo crashed twice", "snow covered the city",
	}
	moods = []string{
		"celebration", "relief", "chaos", "calm", "excitement",
		"exhaustion", "joy", "frustration", "nostalgia", "triumph",
	}
	emoji = []string{
		"🚀", "🎉", "☕", "🔥", "🌧️", "🎂", "🐶", "❄️", "😴", "💥", "✨", "🙌", "😱", "🍕", "🧯",
	}
	botNames = []string{"rocket", "moon", "comet", "pixel", "echo", "nova", "orbit", "spark"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if _, err := os.Stat(*outputPath); err == nil {
		if !*overwrite {
			fmt.Fprintf(os.Stderr, "%s already exists (use -force to replace it)\n", *outputPath)
			os.Exit(1)
		}
		_ = os.Remove(*outputPath)
	}
	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d prompts and %d agents in %s...\n", *numPrompts, *numAgents, *outputPath)
	start := time.Now()
	proposals, err := generate(db, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d prompts, %d agents and %d proposals in %s.\n",
		*numPrompts, *numAgents, proposals, time.Since(start).Round(time.Millisecond))
}

func generate(db *sql.DB, rng *rand.Rand) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	agents := make([]string, *numAgents)
	for i := range agents {
		agents[i] = uuid.NewString()
		name := fmt.Sprintf("%s-bot-%d", pick(rng, botNames), i)
		if _, err := tx.Exec(`INSERT INTO agents VALUES (?, ?, ?, ?)`,
			agents[i], name, uuid.NewString(), now.Format(time.RFC3339)); err != nil {
			return 0, fmt.Errorf("agent %d: %w", i, err)
		}
	}

	proposals := 0
	for i := 0; i < *numPrompts; i++ {
		promptID := uuid.NewString()
		title := fmt.Sprintf("%s #%d", pick(rng, moments), i)
		contextText := fmt.Sprintf("%s and %s", pick(rng, details), pick(rng, details))
		created := now.Add(-time.Duration(rng.Intn(90*24)) * time.Hour)
		if _, err := tx.Exec(`INSERT INTO prompts (id, created_by, title, context_text, created_at) VALUES (?, ?, ?, ?, ?)`,
			promptID, pick(rng, agents), title, contextText, created.Format(time.RFC3339)); err != nil {
			return 0, fmt.Errorf("prompt %d: %w", i, err)
		}

		for j := rng.Intn(*perPrompt + 1); j > 0; j-- {
			parent := promptID
			if rng.Float64() < *orphanChance {
				parent = uuid.NewString()
			}
			var rationale any
			if rng.Intn(4) > 0 {
				rationale = fmt.Sprintf("pure %s", pick(rng, moods))
			}
			if _, err := tx.Exec(`INSERT INTO proposals VALUES (?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), parent, pick(rng, agents), emojiString(rng), rationale,
				created.Add(time.Hour).Format(time.RFC3339)); err != nil {
				return 0, fmt.Errorf("proposal for prompt %d: %w", i, err)
			}
			proposals++
		}
	}
	return proposals, tx.Commit()
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func emojiString(rng *rand.Rand) string {
	var b strings.Builder
	for n := 1 + rng.Intn(4); n > 0; n-- {
		b.WriteString(pick(rng, emoji))
	}
	return b.String()
}
