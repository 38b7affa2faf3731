package domain

// PositionSlot is one position of a spread layout. X and Y are percentages of
// the layout surface.
type PositionSlot struct {
	ID          int           `json:"id"`
	Label       LocalizedText `json:"label"`
	Description LocalizedText `json:"description"`
	X           int           `json:"x"`
	Y           int           `json:"y"`
}

// SpreadTemplate is an immutable card layout.
type SpreadTemplate struct {
	ID          string         `json:"id"`
	Name        LocalizedText  `json:"name"`
	Description LocalizedText  `json:"description"`
	Positions   []PositionSlot `json:"positions"`
}

// SlotCount returns the number of positions in the layout.
func (s SpreadTemplate) SlotCount() int {
	return len(s.Positions)
}
