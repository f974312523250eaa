package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeadline(t *testing.T) {
	got, err := parseDeadline("2030-05-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC).Unix(), got.Unix())

	got, err = parseDeadline("2030-05-01")
	require.NoError(t, err)
	assert.Equal(t, 23, got.Hour())
	assert.Equal(t, 59, got.Second())

	_, err = parseDeadline("next week")
	assert.Error(t, err)
}
