package smoketest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/klupa/klupa/internal/domain/model"
)

// retrieveUserStats fetches the stored profile for every seeded user
// concurrently.
func retrieveUserStats(ctx context.Context, config *Config, users []string, stats *Stats) (map[string]model.User, error) {
	log.Printf("retrieving stats for %d users with %d workers...", len(users), config.Workers)

	client := newHTTPClient(config.Timeout)

	var (
		mu        sync.Mutex
		retrieved = make(map[string]model.User, len(users))
		failed    int64
	)

	userChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for userID := range userChan {
				select {
				case <-ctx.Done():
					return
				default:
					user, err := retrieveSingleUser(ctx, client, config.BaseURL, userID)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("failed to get stats for %s: %v", userID, err)
						}
						continue
					}
					mu.Lock()
					retrieved[userID] = user
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(userChan)
		for _, id := range users {
			select {
			case <-ctx.Done():
				return
			case userChan <- id:
			}
		}
	}()

	wg.Wait()

	stats.UserStatsRetrieved = len(retrieved)

	log.Printf("user stats retrieval completed: %d retrieved, %d failed",
		len(retrieved), int(atomic.LoadInt64(&failed)))

	return retrieved, nil
}

// retrieveSingleUser fetches one user profile.
func retrieveSingleUser(ctx context.Context, client *HTTPClient, baseURL, userID string) (model.User, error) {
	url := fmt.Sprintf("%s/users/%s", baseURL, userID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return model.User{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return model.User{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var user model.User
	if err := json.Unmarshal(body, &user); err != nil {
		return model.User{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return user, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]model.User, error) {
	log.Printf("getting top %d leaderboard entries...", config.TopN)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var leaderboard []model.User
	if err := json.Unmarshal(body, &leaderboard); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(leaderboard)
	log.Printf("retrieved %d leaderboard entries", len(leaderboard))

	return leaderboard, nil
}
