package archive

import (
	"context"
	"errors"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

var ErrMissingGameID = errors.New("game record without id")

// Recorder persists one finished game.
type Recorder interface {
	Record(ctx context.Context, rec arenaproto.GameRecord) error
}

// Fanout writes every record to all recorders and joins their errors.
type Fanout []Recorder

func (f Fanout) Record(ctx context.Context, rec arenaproto.GameRecord) error {
	var errs []error
	for _, r := range f {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
