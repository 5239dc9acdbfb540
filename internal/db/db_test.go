package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRoutesNilIsEmptyArray(t *testing.T) {
	b, err := encodeRoutes(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))
}

func TestDecodeRoutesSkipsNull(t *testing.T) {
	routes, err := decodeRoutes([]byte(`[null,{"responseUuid":"u","routeIndex":1,"options":{"profile":"driving-traffic","enableRefresh":true},"duration":12.5,"distance":100,"legs":[{"duration":12.5,"distance":100,"annotation":{"congestion":["low","heavy"]},"steps":[]}]}]`))
	require.NoError(t, err)

	require.Len(t, routes, 1)
	assert.Equal(t, "u#1", routes[0].ID())
	require.Len(t, routes[0].Legs, 1)
	assert.Equal(t, []string{"low", "heavy"}, routes[0].Legs[0].Annotation.Congestion)
}

func TestDecodeRoutesMalformed(t *testing.T) {
	_, err := decodeRoutes([]byte(`{"routes":1}`))
	assert.ErrorContains(t, err, "decode routes")
}
