package smoketest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klupa/klupa/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete smoke test against a running instance.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting klupa smoke test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.NumUsers),
		logger.Int("objects", config.NumObjects),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check the instance is up
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate users and objects
	users, objects, err := generateSeed(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("seed generation failed: %w", err)
	}

	// Step 3: Place objects concurrently
	if err := submitObjects(ctx, config, objects, stats); err != nil {
		return fmt.Errorf("object placement failed: %w", err)
	}

	// Step 4: Rate and like the placed objects
	if err := submitInteractions(ctx, config, objects, stats); err != nil {
		return fmt.Errorf("interaction submission failed: %w", err)
	}

	// Step 5: Let async notification delivery settle
	logger.Get().Info(ctx, "waiting for the instance to settle")
	time.Sleep(SettleDelay)

	// Step 6: Retrieve user stats concurrently
	retrieved, err := retrieveUserStats(ctx, config, users, stats)
	if err != nil {
		return fmt.Errorf("user stats retrieval failed: %w", err)
	}

	// Step 7: Get leaderboard
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 8: Verify results
	if err := verifyResults(objects, retrieved, leaderboard, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 9: Save seeded objects to file
	if err := saveObjectsToFile(ctx, config, objects); err != nil {
		logger.Get().Warn(ctx, "failed to save objects to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "smoke test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the endpoint serves Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveObjectsToFile saves the seeded objects to a JSON file.
func saveObjectsToFile(ctx context.Context, config *Config, objects []SeedObject) error {
	if len(objects) == 0 {
		return fmt.Errorf("no objects to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "seeded_objects_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal objects: %w", err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "objects saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final smoke test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, objectsPerSecond float64

	attempted := stats.ObjectsSubmitted + stats.ObjectsFailed
	if attempted > 0 {
		successRate = float64(stats.ObjectsSubmitted) / float64(attempted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		objectsPerSecond = float64(stats.ObjectsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("objectsGenerated", stats.ObjectsGenerated),
		logger.Int("objectsSubmitted", stats.ObjectsSubmitted),
		logger.Int("objectsFailed", stats.ObjectsFailed),
		logger.Int("ratingsSubmitted", stats.RatingsSubmitted),
		logger.Int("likesSubmitted", stats.LikesSubmitted),
		logger.Int("interactionsFailed", stats.InteractionsFailed),
		logger.Int("userStatsRetrieved", stats.UserStatsRetrieved),
		logger.Int("pointMismatches", stats.PointMismatches),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("objectsPerSecond", objectsPerSecond))
}
