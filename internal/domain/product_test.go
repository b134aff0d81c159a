package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotsFromURLs_FillsInOrderAndTruncates(t *testing.T) {
	slots := SlotsFromURLs([]string{"a", "b", "c", "d", "e", "f"})

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, slots.URLs())
	assert.Equal(t, -1, slots.FirstFree())
}

func TestSlotsFromURLs_LeavesRemainingSlotsNil(t *testing.T) {
	slots := SlotsFromURLs([]string{"a", "b"})

	assert.NotNil(t, slots[0])
	assert.NotNil(t, slots[1])
	assert.Nil(t, slots[2])
	assert.Nil(t, slots[3])
	assert.Nil(t, slots[4])
	assert.Equal(t, 2, slots.FirstFree())
}

func TestImageSlots_FirstFreeFindsGap(t *testing.T) {
	a, c := "a", "c"
	slots := ImageSlots{&a, nil, &c}

	assert.Equal(t, 1, slots.FirstFree())
	assert.Equal(t, []string{"a", "c"}, slots.URLs())
	assert.True(t, slots.Contains("c"))
	assert.False(t, slots.Contains("b"))
}

func TestProductPatch_IsEmpty(t *testing.T) {
	assert.True(t, ProductPatch{}.IsEmpty())

	soldOut := true
	assert.False(t, ProductPatch{SoldOut: &soldOut}.IsEmpty())
}
