package spaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/cajuhub/roombook/libs/db"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

// PostgresDirectory reads the spaces table. It never writes it.
type PostgresDirectory struct {
	pool *db.Pool
}

func NewPostgresDirectory(pool *db.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

const spaceColumns = `id, floor_id, name, type, active`

func scanSpace(row pgx.Row) (model.Space, error) {
	var s model.Space
	err := row.Scan(&s.ID, &s.FloorID, &s.Name, &s.Type, &s.Active)
	return s, err
}

func (d *PostgresDirectory) Lookup(ctx context.Context, spaceID string) (model.Space, error) {
	s, err := scanSpace(d.pool.QueryRow(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = $1`, spaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Space{}, fmt.Errorf("%w: %s", model.ErrSpaceNotFound, spaceID)
	}
	return s, err
}

func (d *PostgresDirectory) Names(ctx context.Context, spaceIDs []string) (map[string]model.Space, error) {
	out := make(map[string]model.Space, len(spaceIDs))
	if len(spaceIDs) == 0 {
		return out, nil
	}
	rows, err := d.pool.Query(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = ANY($1)`, spaceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (d *PostgresDirectory) List(ctx context.Context) ([]model.Space, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+spaceColumns+` FROM spaces ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Space, error) { return scanSpace(r) })
}

// Seed inserts spaces that do not exist yet. Used by local and test setups.
func (d *PostgresDirectory) Seed(ctx context.Context, spaces []model.Space) error {
	batch := &pgx.Batch{}
	for _, s := range spaces {
		batch.Queue(`
			INSERT INTO spaces (id, floor_id, name, type, active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, s.ID, s.FloorID, s.Name, s.Type, s.Active)
	}
	return d.pool.SendBatch(ctx, batch).Close()
}
