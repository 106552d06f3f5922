package instagram

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilePath(t *testing.T) {
	path := ProfilePath("natgeo")
	assert.True(t, strings.HasPrefix(path, ProfileEndpoint))

	parsed, err := url.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "natgeo", parsed.Query().Get("username"))
}

func TestMediaPath(t *testing.T) {
	path := MediaPath("123456", "cursor1", 12)

	parsed, err := url.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, MediaQueryHash, parsed.Query().Get("query_hash"))

	variables := parsed.Query().Get("variables")
	assert.Contains(t, variables, `"id":"123456"`)
	assert.Contains(t, variables, `"first":12`)
	assert.Contains(t, variables, `"after":"cursor1"`)
}

func TestMediaPathFirstPageOmitsCursor(t *testing.T) {
	path := MediaPath("123456", "", 12)

	parsed, err := url.Parse(path)
	require.NoError(t, err)
	assert.NotContains(t, parsed.Query().Get("variables"), "after")
}

func TestMediaPathClampsLimit(t *testing.T) {
	assert.Contains(t, MediaPath("1", "", 0), "%22first%22%3A12")
	assert.Contains(t, MediaPath("1", "", 1000), "%22first%22%3A50")
}

func TestGetPostURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/p/ABC123/", GetPostURL("ABC123"))
	assert.Empty(t, GetPostURL(""))
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"natgeo", "nat.geo", "nat_geo", "NatGeo99"}
	for _, name := range valid {
		assert.True(t, IsValidUsername(name), "%q should be valid", name)
	}

	invalid := []string{"", "nat geo", "nat-geo", "nat@geo", strings.Repeat("a", 31)}
	for _, name := range invalid {
		assert.False(t, IsValidUsername(name), "%q should be invalid", name)
	}
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "natgeo", SanitizeUsername("@natgeo"))
	assert.Equal(t, "natgeo", SanitizeUsername("natgeo/ "))
	assert.Equal(t, "", SanitizeUsername(""))
}
