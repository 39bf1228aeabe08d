package httpx

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryLimit(t *testing.T) {
	tests := map[string]int{
		"":            defaultModelLimit,
		"limit=abc":   defaultModelLimit,
		"limit=10":    10,
		"limit=0":     1,
		"limit=-5":    1,
		"limit=10000": maxModelLimit,
	}
	for raw, want := range tests {
		q, err := url.ParseQuery(raw)
		assert.NoError(t, err)
		assert.Equal(t, want, queryLimit(q, defaultModelLimit, maxModelLimit), raw)
	}
	assert.Equal(t, 1, queryLimit(url.Values{}, 5, 0))
}
