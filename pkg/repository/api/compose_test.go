package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/trackline/pkg/repository/api"
	"github.com/mpapenbr/trackline/pkg/repository/memory"
)

func TestWithBestLaps(t *testing.T) {
	base := memory.NewRepositories()
	other := memory.NewBestLapRepository()
	repos := api.WithBestLaps(base, other)
	assert.Same(t, base.Track(), repos.Track())
	assert.Same(t, other, repos.BestLap())
	assert.Equal(t, base.Tx(), repos.Tx())
}
