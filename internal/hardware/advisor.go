package hardware

// Recommendation policy bounds.
const (
	minRecommendedRAMMB      = 300
	maxRecommendedRAMMB      = 600
	fallbackRecommendedRAMMB = 600
	smallHostCores           = 2
)

// Recommendation is a deployment hint for an external orchestrator.
type Recommendation struct {
	RAMMB        int         `json:"ram_mb"`
	CPUCores     int         `json:"cpu_cores"`
	Accelerator  Accelerator `json:"accelerator"`
	Architecture string      `json:"architecture"`
}

// Recommend derives resource limits from a snapshot. Only CUDA is advertised
// as an accelerator; every other kind is reported as none.
func Recommend(snapshot Snapshot) Recommendation {
	accelerator := AcceleratorNone
	if snapshot.Accelerator == AcceleratorCUDA {
		accelerator = AcceleratorCUDA
	}

	return Recommendation{
		RAMMB:        recommendRAM(snapshot.RAMMB),
		CPUCores:     recommendCPU(snapshot.CPUCores),
		Accelerator:  accelerator,
		Architecture: snapshot.Architecture,
	}
}

func recommendRAM(totalMB int) int {
	if totalMB <= 0 {
		return fallbackRecommendedRAMMB
	}

	return min(max(totalMB/2, minRecommendedRAMMB), maxRecommendedRAMMB)
}

func recommendCPU(cores int) int {
	if cores <= smallHostCores {
		return 1
	}

	return 2
}
