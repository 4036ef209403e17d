package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectSlot(t *testing.T) {
	offered := []string{"09:00", "09:30", "10:00", "14:00", "15:30"}

	tests := []struct {
		name    string
		message string
		want    string // empty means no selection
	}{
		{name: "bare index", message: "1", want: "09:00"},
		{name: "bare index with punctuation", message: "2!", want: "09:30"},
		{name: "last index", message: "5", want: "15:30"},
		{name: "option keyword", message: "option 3", want: "10:00"},
		{name: "hash", message: "#2", want: "09:30"},
		{name: "indonesian option", message: "pilihan 4", want: "14:00"},
		{name: "out of range option", message: "option 9", want: ""},
		{name: "ordinal word", message: "the second one", want: "09:30"},
		{name: "indonesian ordinal", message: "yang pertama aja", want: "09:00"},
		{name: "last", message: "yang terakhir", want: "15:30"},
		{name: "meridiem time", message: "2pm please", want: "14:00"},
		{name: "24h time", message: "15:30", want: "15:30"},
		{name: "bare afternoon hour", message: "14", want: "14:00"},
		{name: "bare morning hour not an index", message: "10", want: "10:00"},
		{name: "explicit time not offered", message: "jam 3 sore", want: ""},
		{name: "hour with no slot", message: "7", want: ""},
		{name: "asks for more times", message: "do you have other times?", want: ""},
		{name: "unrelated", message: "what is the price", want: ""},
		{name: "empty", message: "  ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectSlot(tc.message, offered)
			if tc.want == "" {
				assert.False(t, ok, "got %q", got)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelectSlotNothingOffered(t *testing.T) {
	_, ok := SelectSlot("1", nil)
	assert.False(t, ok)
}

func TestWantsMoreTimes(t *testing.T) {
	assert.True(t, WantsMoreTimes("Any other slots?"))
	assert.True(t, WantsMoreTimes("ada jam lain?"))
	assert.False(t, WantsMoreTimes("10am"))
}

func TestAffirmativeAndNegative(t *testing.T) {
	yes := []string{"yes", "Ya, betul", "ok!", "oke", "book it please", "Setuju", "sounds good to me"}
	for _, msg := range yes {
		assert.True(t, IsAffirmative(msg), msg)
		assert.False(t, IsNegative(msg), msg)
	}

	no := []string{"no", "tidak jadi", "Batal", "nggak dulu", "please cancel", "yes cancel it"}
	for _, msg := range no {
		assert.True(t, IsNegative(msg), msg)
		assert.False(t, IsAffirmative(msg), msg)
	}

	for _, msg := range []string{"maybe", "what time again?", ""} {
		assert.False(t, IsAffirmative(msg), msg)
		assert.False(t, IsNegative(msg), msg)
	}
}
