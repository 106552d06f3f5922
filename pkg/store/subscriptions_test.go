package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionsInsertionOrder(t *testing.T) {
	subs := NewSubscriptions()
	subs.Set("charlie", time.Unix(3, 0))
	subs.Set("alpha", time.Unix(1, 0))
	subs.Set("bravo", time.Unix(2, 0))

	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, subs.FeedIDs())

	// updating a watermark must not reorder
	subs.Set("alpha", time.Unix(10, 0))
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, subs.FeedIDs())
}

func TestSubscriptionsDelete(t *testing.T) {
	subs := NewSubscriptions()
	subs.Set("alpha", time.Unix(1, 0))
	subs.Set("bravo", time.Unix(2, 0))

	assert.True(t, subs.Delete("alpha"))
	assert.False(t, subs.Delete("alpha"))
	assert.Equal(t, []string{"bravo"}, subs.FeedIDs())
	assert.False(t, subs.Has("alpha"))
}

func TestSubscriptionsCaseSensitive(t *testing.T) {
	subs := NewSubscriptions()
	subs.Set("NatGeo", time.Unix(1, 0))

	assert.False(t, subs.Has("natgeo"))
	assert.True(t, subs.Has("NatGeo"))
}

func TestSubscriptionsJSONRoundTripKeepsKeyOrder(t *testing.T) {
	subs := NewSubscriptions()
	subs.Set("zulu", time.Unix(1700000001, 0))
	subs.Set("alpha", time.Unix(1700000002, 0))
	subs.Set("mike", time.Unix(1700000003, 0))

	data, err := json.Marshal(subs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zulu":1700000001,"alpha":1700000002,"mike":1700000003}`, string(data))

	decoded := NewSubscriptions()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, decoded.FeedIDs())

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestSubscriptionsUnmarshalRejectsNonObject(t *testing.T) {
	decoded := NewSubscriptions()
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), decoded))
	assert.Error(t, json.Unmarshal([]byte(`{"a":"nope"}`), decoded))
}

func TestSubscriptionsWatermarkIsUTC(t *testing.T) {
	subs := NewSubscriptions()
	loc := time.FixedZone("UTC+3", 3*60*60)
	subs.Set("alpha", time.Date(2024, 5, 1, 15, 0, 0, 0, loc))

	mark, ok := subs.Watermark("alpha")
	require.True(t, ok)
	assert.Equal(t, time.UTC, mark.Location())
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), mark)
}
