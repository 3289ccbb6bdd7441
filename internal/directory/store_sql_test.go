package directory_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/usersapi/internal/db"
	"github.com/mind-engage/usersapi/internal/directory"
)

func openStore(t *testing.T) *directory.SQLStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return directory.NewSQLStore(dbh)
}

func TestListPositions_Seeded(t *testing.T) {
	s := openStore(t)
	ps, err := s.ListPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 4)
	assert.Equal(t, directory.Position{ID: 1, Name: "Security"}, ps[0])

	ok, err := s.PositionExists(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.PositionExists(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateAndGetUser(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.CreateUser(ctx, directory.NewUser{Name: "Ann", Email: "ann@example.com", Phone: "+380501234567", PositionID: 2})
	require.NoError(t, err)
	require.NoError(t, s.SetUserPhoto(ctx, id, "http://s3/photos/1.jpg"))

	u, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "Designer", u.Position)
	assert.Equal(t, "http://s3/photos/1.jpg", u.Photo)
	assert.NotZero(t, u.RegistrationTimestamp)

	_, err = s.GetUser(ctx, id+100)
	assert.ErrorIs(t, err, directory.ErrNotFound)
	assert.ErrorIs(t, s.SetUserPhoto(ctx, id+100, "x"), directory.ErrNotFound)
}

func TestCreateUser_Conflict(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.CreateUser(ctx, directory.NewUser{Name: "Ann", Email: "ann@example.com", Phone: "+380501234567", PositionID: 1})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, directory.NewUser{Name: "Bob", Email: "ann@example.com", Phone: "+380507654321", PositionID: 1})
	assert.ErrorIs(t, err, directory.ErrConflict)
}

func TestListUsers_Paging(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for i := 0; i < 7; i++ {
		_, err := s.CreateUser(ctx, directory.NewUser{
			Name:       fmt.Sprintf("user%d", i),
			Email:      fmt.Sprintf("u%d@example.com", i),
			Phone:      fmt.Sprintf("+38050000000%d", i),
			PositionID: 1,
		})
		require.NoError(t, err)
	}

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	page, err := s.ListUsers(ctx, 5, 5)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "user5", page[0].Name)
	assert.Equal(t, "Security", page[0].Position)
}

func TestDeleteUser_FreesEmailAndPhone(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	u := directory.NewUser{Name: "Ann", Email: "ann@example.com", Phone: "+380501234567", PositionID: 2}

	id, err := s.CreateUser(ctx, u)
	require.NoError(t, err)
	require.NoError(t, s.DeleteUser(ctx, id))
	assert.ErrorIs(t, s.DeleteUser(ctx, id), directory.ErrNotFound)

	_, err = s.CreateUser(ctx, u)
	require.NoError(t, err)
}
