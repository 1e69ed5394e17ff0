package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Polls the health endpoint and prints a one-line status, useful while
// watching a deployment settle.
func main() {
	url := "http://localhost:3000/api/v1/health"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	for {
		resp, err := http.Get(url)
		if err != nil {
			fmt.Printf("[%s] unreachable: %v\n", time.Now().Format("2006-01-02 15:04:05"), err)
			time.Sleep(10 * time.Second)
			continue
		}

		var report struct {
			Status string   `json:"status"`
			Issues []string `json:"issues"`
		}
		err = json.NewDecoder(resp.Body).Decode(&report)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("[%s] bad response: %v\n", time.Now().Format("2006-01-02 15:04:05"), err)
			time.Sleep(10 * time.Second)
			continue
		}

		line := fmt.Sprintf("[%s] %s (HTTP %d)", time.Now().Format("2006-01-02 15:04:05"), report.Status, resp.StatusCode)
		for _, issue := range report.Issues {
			line += "\n  - " + issue
		}
		fmt.Println(line)
		time.Sleep(10 * time.Second)
	}
}
