package trip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Conversation(t *testing.T) {
	b := NewBuilder()
	answers := []string{"동탄", "동대구", "20250917", "08", "1", "3", "1", "예"}

	for i, a := range answers {
		f, ok := b.Next()
		require.True(t, ok)
		assert.Equal(t, Fields()[i], f)
		assert.NotEmpty(t, f.Prompt())
		require.NoError(t, b.Answer(a), f.String())
	}

	_, ok := b.Next()
	assert.False(t, ok)
	assert.Equal(t, len(answers), b.Collected())

	r, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 3, r.WindowEnd())
	assert.Equal(t, 1, r.WindowStart())
	assert.True(t, r.AllowWaitlist())

	assert.Error(t, b.Answer("extra"))
}

func TestBuilder_RejectsAndReasks(t *testing.T) {
	b := NewBuilder()

	err := b.Answer("서울")
	assert.ErrorIs(t, err, ErrInvalidStationName)
	f, _ := b.Next()
	assert.Equal(t, FieldDeparture, f)

	require.NoError(t, b.Answer("수서"))
	f, _ = b.Next()
	assert.Equal(t, FieldArrival, f)

	require.NoError(t, b.Answer("부산"))
	assert.ErrorIs(t, b.Answer("20230231"), ErrInvalidDate)
	assert.ErrorIs(t, b.Answer("tomorrow"), ErrInvalidDateFormat)
	require.NoError(t, b.Answer("20240401"))
	assert.ErrorIs(t, b.Answer("09"), ErrInvalidHour)
}

func TestBuilder_BuildIncomplete(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Set(FieldDeparture, "수서"))
	_, err := b.Build()
	assert.ErrorContains(t, err, "arrival")
}

func TestBuilder_CrossFieldRulesOnSet(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Answer("수서"))

	assert.ErrorIs(t, b.Answer("수서"), ErrSameStation)
	f, _ := b.Next()
	assert.Equal(t, FieldArrival, f, "arrival is asked again")
	require.NoError(t, b.Answer("부산"))

	require.NoError(t, b.Set(FieldWindowEnd, "2"))
	assert.ErrorIs(t, b.Set(FieldWindowStart, "3"), ErrInvalidWindow)
	require.NoError(t, b.Set(FieldWindowStart, "2"))
	assert.ErrorIs(t, b.Set(FieldWindowEnd, "1"), ErrInvalidWindow)

	assert.ErrorIs(t, b.Set(FieldDeparture, "부산"), ErrSameStation)
	assert.Equal(t, "수서", b.Params().Departure)
}

func TestParseYesNo(t *testing.T) {
	for _, s := range []string{"예", "yes", "Y", "true"} {
		v, err := ParseYesNo(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"아니오", "no", "N", ""} {
		v, err := ParseYesNo(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseYesNo("maybe")
	assert.ErrorIs(t, err, ErrValidation)
}
