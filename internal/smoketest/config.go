package smoketest

import (
	"time"

	"github.com/klupa/klupa/internal/domain/model"
)

// Config holds configuration for the smoke test
type Config struct {
	BaseURL    string        // Base URL of the service
	NumUsers   int           // Number of simulated users
	NumObjects int           // Number of objects to place
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for seeded objects
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// SeedObject is one generated object plus the interactions planned
// against it.
type SeedObject struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	OwnerID   string  `json:"owner_id"`
	RaterID   string  `json:"rater_id"`
	Rating    int     `json:"rating"`
	Comment   string  `json:"comment,omitempty"`
	LikerID   string  `json:"liker_id"`

	// ID is filled in after submission.
	ID string `json:"id,omitempty"`
}

// awardResponse mirrors the response of the point-granting endpoints.
type awardResponse struct {
	Points  int    `json:"points"`
	Outcome string `json:"outcome"`
}

// addObjectResponse mirrors the response of POST /objects.
type addObjectResponse struct {
	Object model.Object `json:"object"`
	Points int          `json:"points"`
}

// Stats holds smoke test statistics
type Stats struct {
	ObjectsGenerated    int
	ObjectsSubmitted    int
	ObjectsFailed       int
	RatingsSubmitted    int
	LikesSubmitted      int
	InteractionsFailed  int
	UserStatsRetrieved  int
	PointMismatches     int
	LeaderboardEntries  int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
