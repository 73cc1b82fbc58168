package post

import "testing"

func TestPost(t *testing.T) {
	a := 0
	Post(func() {
		a = 1
		Post(func() {
			a = 2
		})
	})
	Tick()
	if a != 2 {
		t.Errorf("a should be 2, but is %v", a)
	}
}

func TestPostPanic(t *testing.T) {
	a := 0
	Post(func() {
		panic("post panic")
	})
	Post(func() {
		a = 1
	})
	Tick()
	if a != 1 {
		t.Errorf("a should be 1, but is %v", a)
	}
}
