package model

import (
	"time"

	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/geom"
)

// Track is a stored track layout. Boundaries holds the outer edge and the
// inner obstacle in any order.
type Track struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Boundaries []geom.Ring       `json:"boundaries"`
	Options    checkpoint.Config `json:"options"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// GeneratorOptions returns the checkpoint options stored with the track.
func (t *Track) GeneratorOptions() []checkpoint.Option {
	return []checkpoint.Option{checkpoint.WithConfig(t.Options)}
}
