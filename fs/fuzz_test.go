package fs_test

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fs"
)

// TestFuzzAgainstModel drives ten handles on one file with random
// seeks and writes, mirroring every operation into a plain byte-slice
// model, then compares a full dump of the file against the model.
func TestFuzzAgainstModel(t *testing.T) {
	m := mkFS(t, 128, 4096, 8)
	defer m.Deinit()

	ip, err := m.Create(common.ROOTINUM, "fuzz")
	require.NoError(t, err)

	const nHandles = 10
	handles := make([]uint32, nHandles)
	offsets := make([]int, nHandles)
	for i := range handles {
		handles[i], err = m.Open(ip, fs.ORead|fs.OWrite)
		require.NoError(t, err)
	}

	rng := rand.New(rand.NewSource(42))
	model := []byte{}

	for step := 0; step < 800; step++ {
		i := rng.Intn(nHandles)
		h := handles[i]
		switch rng.Intn(3) {
		case 0: // seek
			target := rng.Intn(len(model) + 1)
			require.NoError(t, m.Seek(h, int64(target), fs.SeekAbs))
			offsets[i] = target
		case 1: // write
			buf := make([]byte, 1+rng.Intn(200))
			rng.Read(buf)
			n, err := m.Write(h, buf)
			require.NoError(t, err)
			require.Equal(t, uint32(len(buf)), n)
			end := offsets[i] + len(buf)
			if end > len(model) {
				model = append(model, make([]byte, end-len(model))...)
			}
			copy(model[offsets[i]:end], buf)
			offsets[i] = end
		case 2: // read and verify in place
			buf := make([]byte, 1+rng.Intn(200))
			n, _, err := m.Read(h, buf)
			require.NoError(t, err)
			want := len(model) - offsets[i]
			if want > len(buf) {
				want = len(buf)
			}
			require.Equal(t, uint32(want), n, "step %d", step)
			require.True(t, cmp.Equal(model[offsets[i]:offsets[i]+want], buf[:n]) ||
				want == 0, "step %d", step)
			offsets[i] += int(n)
		}
	}

	// dump through a fresh handle and diff against the model
	st, err := m.Stat(ip)
	require.NoError(t, err)
	require.Equal(t, uint32(len(model)), st.Size)

	h, err := m.Open(ip, fs.ORead)
	require.NoError(t, err)
	dump := make([]byte, len(model))
	n, _, err := m.Read(h, dump)
	require.NoError(t, err)
	require.Equal(t, uint32(len(model)), n)

	if diff := cmp.Diff(model, dump); diff != "" {
		t.Fatalf("filesystem diverged from model (-model +fs):\n%s", diff)
	}

	for _, h := range handles {
		require.NoError(t, m.Close(h))
	}
	require.NoError(t, m.Close(h))
}
