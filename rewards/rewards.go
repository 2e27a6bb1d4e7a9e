// Package rewards maps a completed action and its difficulty to base XP.
package rewards

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ActionType string

const (
	DailyHabit ActionType = "daily_habit"
	Exercise   ActionType = "exercise"
	Assignment ActionType = "assignment"
	Custom     ActionType = "custom"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// FallbackXP is awarded for a difficulty the table does not know.
const FallbackXP = 10

// Unrated stands in for any difficulty the table has no cell for.
const Unrated Difficulty = "unrated"

// Table holds XP per action type and difficulty.
type Table map[ActionType]map[Difficulty]int

func Default() Table {
	return Table{
		DailyHabit: {Easy: 8, Medium: 10, Hard: 15},
		Exercise:   {Easy: 12, Medium: 15, Hard: 20},
		Assignment: {Easy: 15, Medium: 20, Hard: 30},
		Custom:     {Easy: 8, Medium: 10, Hard: 15},
	}
}

// Lookup returns base XP. Unknown action types use the custom row and
// unknown difficulties yield FallbackXP.
func (t Table) Lookup(action ActionType, difficulty Difficulty) int {
	action, difficulty = t.Resolve(action, difficulty)
	if xp, ok := t[action][difficulty]; ok {
		return xp
	}
	return FallbackXP
}

// Resolve maps free-form input onto the row and cell Lookup reads, so
// callers can record and label completions with a bounded set of values.
func (t Table) Resolve(action ActionType, difficulty Difficulty) (ActionType, Difficulty) {
	if _, ok := t[action]; !ok {
		action = Custom
	}
	if _, ok := t[action][difficulty]; !ok {
		difficulty = Unrated
	}
	return action, difficulty
}

// CoinsFor converts earned XP to coins.
func CoinsFor(xp int) int {
	return xp / 2
}

// LoadYAML reads a table override. Rows and cells missing from the file
// keep their default values.
//
//	assignment:
//	  hard: 40
func LoadYAML(path string) (Table, error) {
	table := Default()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reward table: %w", err)
	}

	var override map[ActionType]map[Difficulty]int
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing reward table: %w", err)
	}

	for action, row := range override {
		if _, ok := table[action]; !ok {
			table[action] = map[Difficulty]int{}
		}
		for difficulty, xp := range row {
			if xp < 0 {
				return nil, fmt.Errorf("reward table: negative xp for %s/%s", action, difficulty)
			}
			table[action][difficulty] = xp
		}
	}
	return table, nil
}
