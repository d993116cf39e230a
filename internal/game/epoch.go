package game

import "time"

// Epoch progression constants. Epochs are difficulty tiers: each one requires
// collecting a fixed number of blocks and raises the agent's speed.
const (
	BaseEpoch = 161
	MaxEpoch  = 163

	BaseSpeed   = 200.0
	SpeedGrowth = 1.05

	AgentSize = 30.0
	BlockSize = 20.0

	// Block point values are randomized in [blockValueMin, blockValueMin+blockValueSpan).
	blockValueMin  = 50
	blockValueSpan = 100

	// Blocks spawn at least this far from the field edge.
	spawnMargin = 20.0

	defaultEpochBlocks = 10

	// Delay before an epoch transition auto-continues into the next round.
	epochResumeDelay = 1500 * time.Millisecond
)

var epochBlocks = map[int]int{
	161: 10,
	162: 15,
	163: 20,
}

// BlocksForEpoch returns the block count required to clear the given epoch.
// Epochs beyond the table fall back to the default count.
func BlocksForEpoch(epoch int) int {
	if n, ok := epochBlocks[epoch]; ok {
		return n
	}
	return defaultEpochBlocks
}

// SpeedForEpoch returns the agent speed for the given epoch:
// base speed scaled by 5% per epoch past the baseline.
func SpeedForEpoch(epoch int) float64 {
	speed := BaseSpeed
	for e := BaseEpoch; e < epoch; e++ {
		speed *= SpeedGrowth
	}
	return speed
}
