package awutils

import "testing"

func TestRunPanicless(t *testing.T) {
	if paniced := RunPanicless(func() {}); paniced {
		t.Fail()
	}
	if paniced := RunPanicless(func() { panic("oops") }); !paniced {
		t.Fail()
	}
}

func TestRepeatUntilPanicless(t *testing.T) {
	count := 0
	RepeatUntilPanicless(func() {
		count++
		if count < 3 {
			panic("not yet")
		}
	})
	if count != 3 {
		t.Fail()
	}
}
