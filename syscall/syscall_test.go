package syscall

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/kernel"
)

func testKernel(t *testing.T) *kernel.Kernel {
	cfg := config.DefaultConfig()
	k, err := kernel.Boot(cfg, true)
	require.NoError(t, err)
	t.Cleanup(k.Shutdown)
	return k
}

func TestCreateOpenWriteReadClose(t *testing.T) {
	k := testKernel(t)
	require.NoError(t, Create(k, "/a.txt", 16))

	h, err := Open(k, "/a.txt")
	require.NoError(t, err)

	payload := []byte("0123456789abcdef")
	n, err := Write(k, h, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, Close(k, h))

	h2, err := Open(k, "/a.txt")
	require.NoError(t, err)
	got := make([]byte, len(payload))
	n2, err := Read(k, h2, got)
	require.NoError(t, err)
	require.Equal(t, len(payload), n2)
	require.Equal(t, payload, got)
	require.NoError(t, Close(k, h2))
}

func TestOpenMissingReturnsErrNotFound(t *testing.T) {
	k := testKernel(t)
	_, err := Open(k, "/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCloseUnknownHandleReturnsErrBadHandle(t *testing.T) {
	k := testKernel(t)
	require.ErrorIs(t, Close(k, 999), ErrBadHandle)
}

func TestMkDirLsRmDir(t *testing.T) {
	k := testKernel(t)
	require.NoError(t, MkDir(k, "/sub"))
	require.Equal(t, []string{"sub"}, Ls(k))
	require.NoError(t, RmDir(k, "/sub"))
	require.Empty(t, Ls(k))
}

func TestUnimplementedSchedulerCallsReturnErrNotImplemented(t *testing.T) {
	k := testKernel(t)
	_, err := Exec(k, "/a.txt")
	require.ErrorIs(t, err, ErrNotImplemented)
	_, err = Fork(k, 0)
	require.ErrorIs(t, err, ErrNotImplemented)
	require.ErrorIs(t, Yield(k), ErrNotImplemented)
	_, err = Join(k, 1)
	require.ErrorIs(t, err, ErrNotImplemented)
}
