package mm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranslateRoundTrip(t *testing.T) {
	a := NewAddressSpace(64)
	copy(a.Raw()[10:15], []byte("hello"))

	buf, err := a.Translate(10, 5)
	require.NoError(t, err)
	got := make([]byte, 5)
	require.Equal(t, 5, buf.CopyIn(got))
	require.Equal(t, "hello", string(got))

	require.Equal(t, 5, buf.CopyOut([]byte("WORLD")))
	require.Equal(t, "WORLD", string(a.Raw()[10:15]))
}

func TestTranslateOutOfRange(t *testing.T) {
	a := NewAddressSpace(16)
	_, err := a.Translate(10, 10)
	require.Error(t, err)
}

func TestTranslateString(t *testing.T) {
	a := NewAddressSpace(32)
	copy(a.Raw()[0:], []byte("argv0\x00trailing"))

	s, err := a.TranslateString(0)
	require.NoError(t, err)
	require.Equal(t, "argv0", s)
}

func TestPushArgvLayout(t *testing.T) {
	a := NewAddressSpace(256)
	top, argvBase := a.PushArgv(256, []string{"echo", "hi"})

	require.Less(t, top, uint64(256))
	require.Less(t, top, argvBase, "the pointer array sits above the string bytes, nearest the original stack top")

	ptr0 := getU64(a.Raw()[argvBase:])
	ptr1 := getU64(a.Raw()[argvBase+8:])
	term := getU64(a.Raw()[argvBase+16:])
	require.Equal(t, uint64(0), term)
	require.Greater(t, ptr0, ptr1, "argv[0]'s bytes are packed above argv[1]'s, matching the original's push order")

	s0, err := a.TranslateString(ptr0)
	require.NoError(t, err)
	require.Equal(t, "echo", s0)

	s1, err := a.TranslateString(ptr1)
	require.NoError(t, err)
	require.Equal(t, "hi", s1)
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
