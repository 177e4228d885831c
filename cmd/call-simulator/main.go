// Command call-simulator feeds a running crisislens instance with
// synthetic emergency calls over the ingest API. Demo tooling only: the
// caller demographics it fabricates never leave the simulator in real
// deployments.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/go-resty/resty/v2"
)

var descriptions = []string{
	"apartment fire on the third floor, smoke in the stairwell",
	"kitchen fire spreading to the living room",
	"car on fire at the gas station",
	"explosion heard, flames visible from the street",
	"elderly woman collapsed, unresponsive",
	"man with severe chest pain and trouble breathing",
	"child with high fever and seizure",
	"cyclist fell, head injury, bleeding heavily",
	"allergic reaction, face swelling, breathing problems",
	"two car crash at the intersection, people trapped",
	"hit and run, pedestrian injured",
	"truck crash on the highway, lanes blocked",
	"motorcycle accident, rider not moving",
	"robbery in progress at the corner store",
}

var districts = []string{"Centrum", "Noord", "Zuid", "Oost", "West", "Haven"}
var genders = []string{"male", "female"}

type callPayload struct {
	Description  string  `json:"description"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	District     string  `json:"district"`
	CallerGender string  `json:"caller_gender"`
	CallerAge    int     `json:"caller_age"`
	CallerName   string  `json:"caller_name"`
	CallerNumber string  `json:"caller_number"`
}

func randomCall(rng *rand.Rand) callPayload {
	return callPayload{
		Description:  descriptions[rng.Intn(len(descriptions))],
		Latitude:     52.35 + rng.Float64()*0.1,
		Longitude:    4.85 + rng.Float64()*0.1,
		District:     districts[rng.Intn(len(districts))],
		CallerGender: genders[rng.Intn(len(genders))],
		CallerAge:    10 + rng.Intn(75),
		CallerName:   fmt.Sprintf("Caller %03d", rng.Intn(1000)),
		CallerNumber: fmt.Sprintf("+3161%07d", rng.Intn(10000000)),
	}
}

func main() {
	var (
		baseURL  = flag.String("addr", "http://localhost:8080", "crisislens base URL")
		count    = flag.Int("count", 10, "number of calls to send (0 runs until interrupted)")
		interval = flag.Duration("interval", 2*time.Second, "delay between calls")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)

	sent := 0
	for *count == 0 || sent < *count {
		payload := randomCall(rng)
		var result struct {
			RawID  int64  `json:"raw_id"`
			Status string `json:"status"`
		}
		resp, err := client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			SetResult(&result).
			Post("/api/calls")
		if err != nil {
			log.Printf("send: %v", err)
		} else if resp.IsError() {
			log.Printf("send: status=%d body=%s", resp.StatusCode(), resp.String())
		} else {
			log.Printf("sent call %d: %q district=%s", result.RawID, payload.Description, payload.District)
		}
		sent++
		if *count == 0 || sent < *count {
			time.Sleep(*interval)
		}
	}
	log.Printf("done: sent=%d", sent)
}
