package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	targetHost = "http://localhost:8080"
	rps        = 5
	duration   = 2 * time.Minute
)

type submissionRequest struct {
	UnitID      string `json:"unit_id"`
	RevieweeKey string `json:"reviewee_key"`
	Contents    []byte `json:"contents"`
}

type startReviewRequest struct {
	UnitID      string `json:"unit_id"`
	RevieweeKey string `json:"reviewee_key"`
}

type newReviewRequest struct {
	UnitID      string `json:"unit_id"`
	ReviewerKey string `json:"reviewer_key"`
}

var (
	units     []string
	reviewers []string
	httpc     = &http.Client{Timeout: 10 * time.Second}
)

func postJSON(url string, body any) (int, error) {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Seed: работы сдаются и процесс ревью запускается заранее, чтобы
// атака мерила только подбор и назначение.
func seedData() error {
	log.Println("Seeding: creating submissions and starting review processes...")

	for u := 1; u <= 5; u++ {
		unitID := fmt.Sprintf("unit-%02d", u)
		units = append(units, unitID)

		for s := 1; s <= 40; s++ {
			student := fmt.Sprintf("student-%d-%d", u, s)
			reviewers = append(reviewers, student)

			code, err := postJSON(targetHost+"/submission", submissionRequest{
				UnitID:      unitID,
				RevieweeKey: student,
				Contents:    []byte(fmt.Sprintf("essay %d-%d", u, s)),
			})
			if err != nil {
				return err
			}
			if code != http.StatusCreated {
				log.Printf("submission %s: unexpected status %d", student, code)
				continue
			}

			code, err = postJSON(targetHost+"/review/start", startReviewRequest{
				UnitID:      unitID,
				RevieweeKey: student,
			})
			if err != nil {
				return err
			}
			if code != http.StatusCreated {
				log.Printf("start %s: unexpected status %d", student, code)
			}
		}
	}

	log.Printf("Seeded %d units, %d students", len(units), len(reviewers))
	return nil
}

func newReviewTargeter() vegeta.Targeter {
	return func(tgt *vegeta.Target) error {
		unitID := units[rand.Intn(len(units))]
		reviewer := reviewers[rand.Intn(len(reviewers))]

		body, _ := json.Marshal(newReviewRequest{
			UnitID:      unitID,
			ReviewerKey: reviewer,
		})

		tgt.Method = http.MethodPost
		tgt.URL = targetHost + "/review/new"
		tgt.Body = body
		tgt.Header = http.Header{"Content-Type": []string{"application/json"}}
		return nil
	}
}

func main() {
	if err := seedData(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	rate := vegeta.Rate{Freq: rps, Per: time.Second}
	attacker := vegeta.NewAttacker()

	var metrics vegeta.Metrics
	log.Printf("Attacking /review/new at %d rps for %s...", rps, duration)
	for res := range attacker.Attack(newReviewTargeter(), rate, duration, "new-review") {
		metrics.Add(res)
	}
	metrics.Close()

	log.Printf("Requests: %d", metrics.Requests)
	log.Printf("Success ratio: %.2f%%", metrics.Success*100)
	log.Printf("Latency p50: %s, p95: %s, p99: %s",
		metrics.Latencies.P50, metrics.Latencies.P95, metrics.Latencies.P99)
	log.Printf("Status codes: %v", metrics.StatusCodes)
}
