package racetrack

// Vec2 is a row/col pair, used for both positions and velocities.
type Vec2 struct {
	Row, Col int
}

// Add returns the component-wise sum.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{Row: v.Row + other.Row, Col: v.Col + other.Col}
}

// Action velocity increments, indexed by action id. Three increments per axis (+1, 0, -1)
// yields 9 actions per step.
var actionTable = [...]Vec2{
	{Row: 1, Col: -1},  // accelerate row, brake col
	{Row: 1, Col: 0},   // accelerate row, hold col
	{Row: 1, Col: 1},   // accelerate row, accelerate col
	{Row: 0, Col: -1},  // hold row, brake col
	{Row: 0, Col: 0},   // hold row, hold col
	{Row: 0, Col: 1},   // hold row, accelerate col
	{Row: -1, Col: -1}, // brake row, brake col
	{Row: -1, Col: 0},  // brake row, hold col
	{Row: -1, Col: 1},  // brake row, accelerate col
}

// NumActions is the number of legal actions; ids are 0 through NumActions-1.
const NumActions = len(actionTable)

// ActionDelta returns the intended velocity change of an action, and false if the id is not legal.
func ActionDelta(action int) (Vec2, bool) {
	if action < 0 || action >= NumActions {
		return Vec2{}, false
	}
	return actionTable[action], true
}

func clamp(v, lo, hi int) int {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

func clampVelocity(v Vec2) Vec2 {
	return Vec2{
		Row: clamp(v.Row, MinVelocity, MaxVelocity),
		Col: clamp(v.Col, MinVelocity, MaxVelocity),
	}
}
