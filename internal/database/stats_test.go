package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = r.values[i].(int)
		case *float64:
			*p = r.values[i].(float64)
		case **float64:
			if v, ok := r.values[i].(float64); ok {
				*p = &v
			} else {
				*p = nil
			}
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	args []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func TestGetPlayerStats(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{40, 25, 15, 1712.5, 80.0, 0.06, 17, -12.0}}}

	rec, err := GetPlayerStats(context.Background(), q, "player-1")
	require.NoError(t, err)

	assert.Equal(t, []any{"player-1"}, q.args)
	assert.Equal(t, 40, rec.Games)
	assert.Equal(t, 25, rec.Wins)
	assert.Equal(t, 15, rec.Losses)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 1712.5, *rec.Rating)
	assert.Equal(t, 17, rec.Rank)
	assert.Equal(t, -12.0, rec.LastChange)
}

func TestGetPlayerStatsUnrated(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{0, 0, 0, nil, nil, nil, 0, 0.0}}}

	rec, err := GetPlayerStats(context.Background(), q, "fresh")
	require.NoError(t, err)
	assert.Nil(t, rec.Rating)
	assert.Nil(t, rec.Deviation)
}

func TestGetPlayerStatsNotFound(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}

	_, err := GetPlayerStats(context.Background(), q, "ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestGetPlayerStatsQueryError(t *testing.T) {
	boom := errors.New("connection reset")
	q := &fakeQuerier{row: fakeRow{err: boom}}

	_, err := GetPlayerStats(context.Background(), q, "p")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrPlayerNotFound)
}
