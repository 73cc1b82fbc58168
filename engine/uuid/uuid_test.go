package uuid

import "testing"

func TestGenUUID(t *testing.T) {
	for i := 0; i < 100; i++ {
		uuid := GenUUID()
		t.Logf("GenUUID: %s", uuid)
		if len(uuid) != UUID_LENGTH {
			t.FailNow()
		}
	}
}

func TestGenUUIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		uuid := GenUUID()
		if seen[uuid] {
			t.Errorf("duplicate uuid: %s", uuid)
		}
		seen[uuid] = true
	}
}

func BenchmarkGenUUID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenUUID()
	}
}
