package eventstudy

import "fmt"

// Window is an event window in trading days relative to the event day.
// Pre is non-positive, Post non-negative; [-3,+3] is {Pre: -3, Post: 3}.
type Window struct {
	Pre  int `json:"pre"`
	Post int `json:"post"`
}

// DefaultWindows are the event windows estimated for every event
var DefaultWindows = []Window{
	{Pre: -1, Post: 1},
	{Pre: -3, Post: 3},
	{Pre: -5, Post: 5},
	{Pre: 0, Post: 10},
}

// Column returns the table column name for this window's CAR,
// e.g. car_m3_p3 for [-3,+3] and car_0_p10 for [0,+10].
func (w Window) Column() string {
	pre := fmt.Sprintf("%d", w.Pre)
	if w.Pre < 0 {
		pre = fmt.Sprintf("m%d", -w.Pre)
	}
	return fmt.Sprintf("car_%s_p%d", pre, w.Post)
}

// Label returns the conventional bracket notation for reports
func (w Window) Label() string {
	if w.Pre == 0 {
		return fmt.Sprintf("[0,%+d]", w.Post)
	}
	return fmt.Sprintf("[%+d,%+d]", w.Pre, w.Post)
}

// Width returns the number of trading days in the window
func (w Window) Width() int {
	return w.Post - w.Pre + 1
}

// Valid reports whether the window is well formed
func (w Window) Valid() bool {
	return w.Pre <= 0 && w.Post >= 0 && w.Pre <= w.Post
}
