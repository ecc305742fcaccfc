package resumable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"1048576-photo_jpg":  "1048576-photo_jpg",
		"../../etc/passwd":   "etcpasswd",
		"a b\tc\n":           "abc",
		"файл-42":            "-42",
		"name.with.dots":     "namewithdots",
		"":                   "",
		"ABC_xyz-019":        "ABC_xyz-019",
		"0-9A-Za-z_-":        "0-9A-Za-z_-",
		"%2e%2e%2fsecret.1":  "2e2e2fsecret1",
		"id/with\\slashes:1": "idwithslashes1",
	}

	for in, want := range cases {
		assert.Equal(t, want, SanitizeIdentifier(in), "input %q", in)
	}
}

func TestSanitizeIdentifier_Idempotent(t *testing.T) {
	inputs := []string{"", "plain", "../x", "a.b.c", "ünïcödé", "\x00\xff", "x-1_2", "  spaced  "}
	for _, in := range inputs {
		once := SanitizeIdentifier(in)
		assert.Equal(t, once, SanitizeIdentifier(once), "input %q", in)
	}
}

func TestSanitizeIdentifier_CollisionsShareStorageKey(t *testing.T) {
	store, err := NewChunkStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, store.ChunkPath("abc.def", 1), store.ChunkPath("abc/def", 1))
}
