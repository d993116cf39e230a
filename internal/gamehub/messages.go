package gamehub

// inbound is a message from the embedding host: high-score seeding, input,
// and lifecycle requests.
type inbound struct {
	Type      string  `json:"type"`
	HighScore int     `json:"highScore,omitempty"`
	Direction string  `json:"direction,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
}

// Inbound message types.
const (
	msgSetHighScore = "setHighScore"
	msgDirection    = "direction"
	msgPointTowards = "pointTowards"
	msgStart        = "start"
	msgRestart      = "restart"
)

// outbound is an event envelope pushed to the host.
type outbound struct {
	Type      string `json:"type"`
	Score     int    `json:"score,omitempty"`
	Epoch     int    `json:"epoch,omitempty"`
	HighScore int    `json:"highScore,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Outbound message types.
const (
	msgScoreUpdate     = "scoreUpdate"
	msgEpochStart      = "epochStart"
	msgGameEnd         = "gameEnd"
	msgHighScoreUpdate = "highScoreUpdate"
)
