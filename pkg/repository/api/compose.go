package api

type composed struct {
	Repositories
	bestLap BestLapRepository
}

// WithBestLaps returns repositories that keep tracks and transactions of base
// but store best laps in bestLap. Best laps written to bestLap are not part
// of transactions started by base.
func WithBestLaps(base Repositories, bestLap BestLapRepository) Repositories {
	return &composed{Repositories: base, bestLap: bestLap}
}

func (c *composed) BestLap() BestLapRepository { return c.bestLap }
