package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

type placement struct {
	SectionID   string `json:"section_id"`
	RoomID      string `json:"room_id"`
	Day         string `json:"day"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	DayPart     string `json:"day_part"`
}

type scheduleDetail struct {
	Placements []placement `json:"placements"`
	Unplaced   []string    `json:"unplaced"`
}

type envelope struct {
	Data scheduleDetail `json:"data"`
}

type sectionDiff struct {
	SectionID string
	Before    *placement
	After     *placement
}

func main() {
	var (
		base    string
		token   string
		fromID  string
		toID    string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer access token")
	flag.StringVar(&fromID, "from", "", "Baseline schedule ID")
	flag.StringVar(&toID, "to", "", "Candidate schedule ID")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if fromID == "" || toID == "" {
		log.Fatal("both -from and -to schedule IDs are required")
	}

	client := &http.Client{Timeout: timeout}

	before, err := fetchSchedule(client, base, token, fromID)
	if err != nil {
		log.Fatalf("failed to load baseline schedule: %v", err)
	}
	after, err := fetchSchedule(client, base, token, toID)
	if err != nil {
		log.Fatalf("failed to load candidate schedule: %v", err)
	}

	diffs := diffSchedules(before, after)
	printReport(fromID, toID, before, after, diffs)

	if len(diffs) > 0 {
		os.Exit(1)
	}
}

func fetchSchedule(client *http.Client, base, token, id string) (*scheduleDetail, error) {
	url := strings.TrimRight(base, "/") + "/exam-schedules/" + id
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env.Data, nil
}

func diffSchedules(before, after *scheduleDetail) []sectionDiff {
	beforeByID := indexPlacements(before.Placements)
	afterByID := indexPlacements(after.Placements)

	sections := make(map[string]struct{}, len(beforeByID)+len(afterByID))
	for id := range beforeByID {
		sections[id] = struct{}{}
	}
	for id := range afterByID {
		sections[id] = struct{}{}
	}

	var diffs []sectionDiff
	for id := range sections {
		b, hasBefore := beforeByID[id]
		a, hasAfter := afterByID[id]
		switch {
		case hasBefore && hasAfter:
			if b != a {
				bc, ac := b, a
				diffs = append(diffs, sectionDiff{SectionID: id, Before: &bc, After: &ac})
			}
		case hasBefore:
			bc := b
			diffs = append(diffs, sectionDiff{SectionID: id, Before: &bc})
		default:
			ac := a
			diffs = append(diffs, sectionDiff{SectionID: id, After: &ac})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].SectionID < diffs[j].SectionID })
	return diffs
}

func indexPlacements(placements []placement) map[string]placement {
	byID := make(map[string]placement, len(placements))
	for _, p := range placements {
		byID[p.SectionID] = p
	}
	return byID
}

func printReport(fromID, toID string, before, after *scheduleDetail, diffs []sectionDiff) {
	fmt.Println("Schedule Diff Report")
	fmt.Println("====================")
	fmt.Printf("Baseline:  %s (%d placed, %d unplaced)\n", fromID, len(before.Placements), len(before.Unplaced))
	fmt.Printf("Candidate: %s (%d placed, %d unplaced)\n", toID, len(after.Placements), len(after.Unplaced))

	for _, d := range diffs {
		switch {
		case d.Before != nil && d.After != nil:
			fmt.Printf("[MOVED] %s\n", d.SectionID)
			fmt.Printf("  before: %s\n", formatPlacement(*d.Before))
			fmt.Printf("  after:  %s\n", formatPlacement(*d.After))
		case d.Before != nil:
			fmt.Printf("[DROPPED] %s was %s\n", d.SectionID, formatPlacement(*d.Before))
		default:
			fmt.Printf("[ADDED] %s now %s\n", d.SectionID, formatPlacement(*d.After))
		}
	}

	fmt.Printf("Changed sections: %d\n", len(diffs))
}

func formatPlacement(p placement) string {
	return fmt.Sprintf("%s %s %s-%s (%s)", p.RoomID, p.Day, minuteClock(p.StartMinute), minuteClock(p.EndMinute), p.DayPart)
}

func minuteClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
