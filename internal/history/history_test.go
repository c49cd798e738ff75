package history

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/logger"
)

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type fakeDBTX struct {
	stored []byte
	title  string
	model  any
}

func (d *fakeDBTX) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (d *fakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (d *fakeDBTX) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if strings.HasPrefix(strings.TrimSpace(sql), "INSERT") {
		d.title = args[1].(string)
		d.model = args[2]
		d.stored = args[3].([]byte)
		return &fakeRow{scanFunc: func(dest ...any) error {
			*dest[0].(*int64) = 11
			return nil
		}}
	}
	return &fakeRow{scanFunc: func(dest ...any) error {
		if args[1].(int64) != 5 {
			return pgx.ErrNoRows
		}
		*dest[0].(*int64) = args[0].(int64)
		*dest[1].(*int64) = 5
		*dest[2].(*string) = d.title
		*dest[3].(**int64) = nil
		*dest[4].(*[]byte) = d.stored
		*dest[5].(*time.Time) = time.Time{}
		*dest[6].(*time.Time) = time.Time{}
		return nil
	}}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	t.Parallel()

	reply, err := content.Assistant(content.ThinkingBlock("hmm", "sig"), content.TextBlock("Hi!"))
	require.NoError(t, err)
	transcript := []content.Message{content.UserText("Hello there"), reply}

	conn := &fakeDBTX{}
	svc := NewService(logger.L, conn)
	id, err := svc.Save(context.Background(), 5, 0, transcript)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, "Hello there", conn.title)
	assert.Nil(t, conn.model)

	got, err := svc.Get(context.Background(), 5, 11)
	require.NoError(t, err)
	want, _ := json.Marshal(transcript)
	have, _ := json.Marshal(got.Transcript)
	assert.JSONEq(t, string(want), string(have))

	_, err = svc.Get(context.Background(), 6, 11)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsEmpty(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.L, &fakeDBTX{})
	_, err := svc.Save(context.Background(), 1, 0, nil)
	assert.Error(t, err)
	_, err = svc.Save(context.Background(), 0, 0, []content.Message{content.UserText("x")})
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 100)
	assert.Equal(t, strings.Repeat("é", 80), Title([]content.Message{content.UserText(long)}))
	assert.Equal(t, "a b", Title([]content.Message{{Role: content.RoleUser, Content: content.Text("  a \n b ")}}))
	assert.Equal(t, "Untitled", Title(nil))
}

func TestDeleteMissing(t *testing.T) {
	t.Parallel()

	err := NewService(logger.L, &fakeDBTX{}).Delete(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}
