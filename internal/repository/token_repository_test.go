package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_TokenRepository_RegisterIsIdempotent(t *testing.T) {
	repo := NewTokenRepository()
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	repo.Register("tok-1", "android", at)
	repo.Register("tok-1", "android", at.Add(time.Hour))
	repo.Register("tok-2", "ios", at)

	require.Equal(t, 2, repo.Count())
	require.ElementsMatch(t, []string{"tok-1", "tok-2"}, repo.Tokens())
}

func Test_TokenRepository_Unregister(t *testing.T) {
	repo := NewTokenRepository()
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	repo.Register("tok-1", "android", at)
	repo.Unregister("tok-1")
	repo.Unregister("never-registered")

	require.Equal(t, 0, repo.Count())
	require.Empty(t, repo.Tokens())
}
