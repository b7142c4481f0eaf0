// Command seed_cases posts sample assessments and sessions to a running API
// instance. Intended for local development and demo environments only.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type seedFile struct {
	Assessments []json.RawMessage `json:"assessments"`
	Sessions    []json.RawMessage `json:"sessions"`
}

func main() {
	var (
		base    string
		token   string
		path    string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token")
	flag.StringVar(&path, "file", "scripts/seed_cases/cases.json", "Path to JSON seed file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read seed file: %v", err)
	}
	var seeds seedFile
	if err := json.Unmarshal(data, &seeds); err != nil {
		log.Fatalf("failed to parse seed file: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	created, failed := 0, 0

	for _, payload := range seeds.Assessments {
		if post(client, base+"/assessments", token, payload) {
			created++
		} else {
			failed++
		}
	}
	for _, payload := range seeds.Sessions {
		if post(client, base+"/sessions", token, payload) {
			created++
		} else {
			failed++
		}
	}

	fmt.Printf("Seeded %d records, %d failed\n", created, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func post(client *http.Client, url, token string, payload json.RawMessage) bool {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Printf("build request %s: %v", url, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("POST %s: %v", url, err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("POST %s: status %d", url, resp.StatusCode)
		return false
	}
	return true
}
