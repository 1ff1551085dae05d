package funnel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerSet_SetMultiDeduplicates(t *testing.T) {
	a := NewAnswerSet()
	a.SetMulti(QActionStats, "GA4", "GSC", "GA4", "GBP", "GSC")

	assert.Equal(t, []string{"GA4", "GSC", "GBP"}, a.GetMulti(QActionStats))
}

func TestAnswerSet_JSONRoundTrip(t *testing.T) {
	a := NewAnswerSet()
	a.Set(QAvgCTR, "≥5%")
	a.SetMulti(QActionStats, "GA4", "GBP")

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var back AnswerSet
	require.NoError(t, json.Unmarshal(data, &back))

	v, ok := back.Get(QAvgCTR)
	require.True(t, ok)
	assert.Equal(t, "≥5%", v)
	assert.Equal(t, []string{"GA4", "GBP"}, back.GetMulti(QActionStats))
}

func TestAnswerSet_UnmarshalRejectsNonString(t *testing.T) {
	var a AnswerSet
	err := json.Unmarshal([]byte(`{"avgCTR": 5}`), &a)
	assert.Error(t, err)
}

func TestAnswerSet_Merge(t *testing.T) {
	a := NewAnswerSet()
	a.Set(QAvgCTR, "<1%")

	b := NewAnswerSet()
	b.Set(QAvgCTR, "≥5%")
	b.SetMulti(QActionStats, "GSC")

	a.Merge(b)

	v, _ := a.Get(QAvgCTR)
	assert.Equal(t, "≥5%", v, "later answers overwrite earlier ones")
	assert.Equal(t, []string{"GSC"}, a.GetMulti(QActionStats))
	assert.Equal(t, 2, a.Len())
}
