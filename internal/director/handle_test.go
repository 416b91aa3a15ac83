package director

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindStripeFirstStripeNoOffset(t *testing.T) {
	stripes := []StripeDescriptor{
		{LocalName: "1-0", Low: 0, High: 8},
		{LocalName: "2-0", Low: 9, High: 14},
	}
	stripeIdx, localIdx, ok := findStripe(stripes, 3)
	assert.True(t, ok)
	assert.Equal(t, 0, stripeIdx)
	assert.Equal(t, 3, localIdx)
}

func TestFindStripeSecondStripeOffsetByFirstLength(t *testing.T) {
	stripes := []StripeDescriptor{
		{LocalName: "1-0", Low: 0, High: 8},  // length 9
		{LocalName: "2-0", Low: 9, High: 14}, // length 6
	}
	// Scenario S4: index 12 in a 15-element list split 9/6.
	stripeIdx, localIdx, ok := findStripe(stripes, 12)
	assert.True(t, ok)
	assert.Equal(t, 1, stripeIdx)
	assert.Equal(t, 3, localIdx, "global index 12 minus 9 preceding elements = local index 3")
}

func TestFindStripeOutOfRange(t *testing.T) {
	stripes := []StripeDescriptor{{LocalName: "1-0", Low: 0, High: 8}}
	_, _, ok := findStripe(stripes, 99)
	assert.False(t, ok)
}

func TestShardOfLocalNameParsesRankPrefix(t *testing.T) {
	rank, ok := shardOfLocalName("3-14")
	assert.True(t, ok)
	assert.Equal(t, 3, rank)
}

func TestShardOfLocalNameRejectsMalformed(t *testing.T) {
	_, ok := shardOfLocalName("not-a-rank-pair-x")
	assert.False(t, ok)
}

func TestHandleLiveness(t *testing.T) {
	h := &Handle{}
	assert.False(t, h.Live())

	h.Stripes = []StripeDescriptor{{LocalName: "1-0", Low: 0, High: 0}}
	assert.True(t, h.Live())
}
