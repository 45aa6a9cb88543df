package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitObjects places all generated objects concurrently and records
// the assigned IDs back into the slice.
func submitObjects(ctx context.Context, config *Config, objects []SeedObject, stats *Stats) error {
	log.Printf("placing %d objects with %d workers...", len(objects), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/objects"

	var (
		submitted int64
		failed    int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
					id, err := submitSingleObject(ctx, client, url, &objects[index])
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("failed to place object %d: %v", index, err)
						}
						continue
					}
					objects[index].ID = id
					atomic.AddInt64(&submitted, 1)
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range objects {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.ObjectsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.ObjectsFailed = int(atomic.LoadInt64(&failed))

	log.Printf("object placement completed: %d placed, %d failed",
		stats.ObjectsSubmitted, stats.ObjectsFailed)

	if stats.ObjectsSubmitted == 0 {
		return fmt.Errorf("no objects were placed")
	}
	return nil
}

// submitSingleObject places one object and returns its assigned ID.
func submitSingleObject(ctx context.Context, client *HTTPClient, url string, obj *SeedObject) (string, error) {
	body := map[string]interface{}{
		"name":      obj.Name,
		"kind":      obj.Kind,
		"state":     obj.State,
		"latitude":  obj.Latitude,
		"longitude": obj.Longitude,
		"user_id":   obj.OwnerID,
	}

	resp, err := client.Post(ctx, url, body)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	data, err := readResponseBody(resp)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}

	var created addObjectResponse
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return created.Object.ID, nil
}

// submitInteractions rates and likes every placed object concurrently.
func submitInteractions(ctx context.Context, config *Config, objects []SeedObject, stats *Stats) error {
	log.Printf("rating and liking %d objects with %d workers...", stats.ObjectsSubmitted, config.Workers)

	client := newHTTPClient(config.Timeout)

	var (
		ratings int64
		likes   int64
		failed  int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
					obj := objects[index]
					if obj.ID == "" {
						continue
					}

					rateURL := fmt.Sprintf("%s/objects/%s/ratings", config.BaseURL, obj.ID)
					rateBody := map[string]interface{}{
						"user_id": obj.RaterID,
						"rating":  obj.Rating,
						"comment": obj.Comment,
					}
					if err := postAward(ctx, client, rateURL, rateBody); err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("failed to rate object %s: %v", obj.ID, err)
						}
					} else {
						atomic.AddInt64(&ratings, 1)
					}

					likeURL := fmt.Sprintf("%s/objects/%s/likes", config.BaseURL, obj.ID)
					likeBody := map[string]interface{}{"user_id": obj.LikerID}
					if err := postAward(ctx, client, likeURL, likeBody); err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("failed to like object %s: %v", obj.ID, err)
						}
					} else {
						atomic.AddInt64(&likes, 1)
					}
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range objects {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.RatingsSubmitted = int(atomic.LoadInt64(&ratings))
	stats.LikesSubmitted = int(atomic.LoadInt64(&likes))
	stats.InteractionsFailed = int(atomic.LoadInt64(&failed))

	log.Printf("interactions completed: %d ratings, %d likes, %d failed",
		stats.RatingsSubmitted, stats.LikesSubmitted, stats.InteractionsFailed)

	return nil
}

// postAward posts one point-granting request and checks the outcome.
func postAward(ctx context.Context, client *HTTPClient, url string, body interface{}) error {
	resp, err := client.Post(ctx, url, body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	data, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}

	var award awardResponse
	if err := json.Unmarshal(data, &award); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if award.Outcome != "awarded" {
		return fmt.Errorf("unexpected outcome %q", award.Outcome)
	}
	return nil
}
