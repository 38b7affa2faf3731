package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		xp        int
		level     int
		titleEn   string
		nextLevel int
	}{
		{0, 1, "Tarot Beginner", 500},
		{499, 1, "Tarot Beginner", 500},
		{500, 2, "Regular Tarot Reader", 1000},
		{999, 2, "Regular Tarot Reader", 1000},
		{1000, 3, "Tarot Elite", 2000},
		{1999, 3, "Tarot Elite", 2000},
		{2000, 4, "Senior Tarot Reader", 5000},
		{4999, 4, "Senior Tarot Reader", 5000},
		{5000, 5, "Tarot Master", 10000},
		{250000, 5, "Tarot Master", 10000},
	}

	for _, tt := range tests {
		got := CalculateLevel(tt.xp)
		assert.Equal(t, tt.level, got.Level, "xp=%d", tt.xp)
		assert.Equal(t, tt.titleEn, got.TitleEn, "xp=%d", tt.xp)
		assert.Equal(t, tt.nextLevel, got.NextLevel, "xp=%d", tt.xp)
	}
}

func TestLevelInfoLocalizedTitle(t *testing.T) {
	info := CalculateLevel(0)
	assert.Equal(t, "Tarot Beginner", info.LocalizedTitle("en"))
	assert.Equal(t, "塔罗初学者", info.LocalizedTitle("zh"))
	assert.Equal(t, "Tarot Beginner", info.LocalizedTitle("fr"))
}
