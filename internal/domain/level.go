package domain

// LevelInfo describes the tier a given XP total falls into. Only the backend
// computes it; clients display the value they were last sent.
type LevelInfo struct {
	Level     int    `json:"level"`
	Title     string `json:"title"`
	TitleEn   string `json:"title_en"`
	NextLevel int    `json:"next_level"`
}

// ExperienceSnapshot is the canonical XP total and tier as returned by the
// backend.
type ExperienceSnapshot struct {
	Experience int       `json:"experience"`
	LevelInfo  LevelInfo `json:"level_info"`
}

// LocalizedTitle returns the tier title for the given language code.
func (l LevelInfo) LocalizedTitle(lang string) string {
	return LocalizedText{En: l.TitleEn, Zh: l.Title}.In(lang)
}

// levelTiers is ordered by ascending threshold. A user belongs to the first
// tier whose threshold exceeds their XP.
var levelTiers = []struct {
	below int
	info  LevelInfo
}{
	{500, LevelInfo{Level: 1, Title: "塔罗初学者", TitleEn: "Tarot Beginner", NextLevel: 500}},
	{1000, LevelInfo{Level: 2, Title: "普通塔罗师", TitleEn: "Regular Tarot Reader", NextLevel: 1000}},
	{2000, LevelInfo{Level: 3, Title: "塔罗精英", TitleEn: "Tarot Elite", NextLevel: 2000}},
	{5000, LevelInfo{Level: 4, Title: "资深塔罗师", TitleEn: "Senior Tarot Reader", NextLevel: 5000}},
}

var masterTier = LevelInfo{Level: 5, Title: "塔罗大师", TitleEn: "Tarot Master", NextLevel: 10000}

// CalculateLevel maps an XP total onto its tier. This is the authority used
// by the backend server.
func CalculateLevel(experience int) LevelInfo {
	for _, tier := range levelTiers {
		if experience < tier.below {
			return tier.info
		}
	}
	return masterTier
}
