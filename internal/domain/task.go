package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CheckTask is the queue message describing one dispatch: which checks to run
// against which target. It is consumed once logically, possibly delivered
// several times physically.
type CheckTask struct {
	URL                 string   `json:"url"`
	Owner               string   `json:"owner,omitempty"`
	Recursive           bool     `json:"recursive"`
	CheckSpelling       bool     `json:"check_spelling"`
	CheckPerformance    bool     `json:"check_lighthouse"`
	CheckLinks          bool     `json:"check_links"`
	SpellingExtraWords  WordList `json:"spelling_extra_words"`
	SpellingIgnoreWords WordList `json:"spelling_full_ignore_words"`
	Token               string   `json:"token"`
	ForceRun            bool     `json:"force_run"`
}

// NewTask builds the task for a target using its configured flags.
func NewTask(t Target) CheckTask {
	return CheckTask{
		URL:                 t.BaseURL,
		Owner:               t.Owner,
		Recursive:           t.Recursive,
		CheckSpelling:       t.CheckSpelling,
		CheckPerformance:    t.CheckPerformance,
		CheckLinks:          t.CheckLinks,
		SpellingExtraWords:  append(WordList(nil), t.SpellingExtraWords...),
		SpellingIgnoreWords: append(WordList(nil), t.SpellingIgnoreWords...),
		Token:               t.Token,
	}
}

// LinksEnabled reports whether the link check runs. A recursive crawl always
// checks links.
func (t CheckTask) LinksEnabled() bool {
	return t.CheckLinks || t.Recursive
}

// Validate rejects tasks the worker cannot act on.
func (t CheckTask) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return fmt.Errorf("task has no url")
	}
	if t.Token == "" {
		return fmt.Errorf("task for %s has no submission token", t.URL)
	}
	return nil
}

// DecodeTask parses a raw queue payload.
func DecodeTask(payload []byte) (CheckTask, error) {
	var task CheckTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return CheckTask{}, fmt.Errorf("failed to decode task: %w", err)
	}
	if err := task.Validate(); err != nil {
		return CheckTask{}, err
	}
	return task, nil
}

// Overrides carries the optional per-dispatch flag overrides accepted by
// /schedule-check. Nil fields keep the target's configuration.
type Overrides struct {
	Owner            string `json:"owner,omitempty"`
	CheckSpelling    *bool  `json:"check_spelling,omitempty"`
	CheckPerformance *bool  `json:"check_lighthouse,omitempty"`
	CheckLinks       *bool  `json:"check_links,omitempty"`
	Recursive        *bool  `json:"recursive,omitempty"`
	ForceRun         bool   `json:"force-run,omitempty"`
}

// Apply returns a copy of the task with the overrides applied.
func (o Overrides) Apply(task CheckTask) CheckTask {
	if o.CheckSpelling != nil {
		task.CheckSpelling = *o.CheckSpelling
	}
	if o.CheckPerformance != nil {
		task.CheckPerformance = *o.CheckPerformance
	}
	if o.CheckLinks != nil {
		task.CheckLinks = *o.CheckLinks
	}
	if o.Recursive != nil {
		task.Recursive = *o.Recursive
	}
	if o.ForceRun {
		task.ForceRun = true
	}
	return task
}

// WordList decodes either a JSON array of words or a comma separated string.
// Older publishers sent an empty string for "no words".
type WordList []string

func (w *WordList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*w = cleanWords(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("word list must be an array or a string: %w", err)
	}
	*w = cleanWords(strings.Split(joined, ","))
	return nil
}

func cleanWords(in []string) WordList {
	var out WordList
	for _, word := range in {
		if word = strings.TrimSpace(word); word != "" {
			out = append(out, word)
		}
	}
	return out
}
