package domain

// TrainingMetrics is one observation reported by the trainer, either from
// the metrics history endpoint or as a live stream frame. The sequence is
// append-only per job and ordered by arrival.
type TrainingMetrics struct {
	EpLenMean       float64 `json:"ep_len_mean"`
	EpRewMean       float64 `json:"ep_rew_mean,omitempty"`
	ExplorationRate float64 `json:"exploration_rate"`
	Episodes        int     `json:"episodes"`
	FPS             float64 `json:"fps"`
	TimeElapsed     float64 `json:"time_elapsed"`
	TotalTimesteps  int64   `json:"total_timesteps"`
	Timestamp       string  `json:"timestamp"`
}
