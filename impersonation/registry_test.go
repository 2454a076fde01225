package impersonation

import (
	"errors"
	"testing"

	"github.com/airchains-network/devchain/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contract = common.HexToAddress("0xc0ffee")
	eoa      = common.HexToAddress("0xe0a")
)

func newRegistry() *Registry {
	log, _ := test.NewNullLogger()
	return NewRegistry(log)
}

func TestImpersonateContractHidesAndRestoresCode(t *testing.T) {
	store := state.NewStore(nil)
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	store.SetCode(contract, code)
	r := newRegistry()

	require.NoError(t, r.Impersonate(contract, store))
	assert.True(t, r.IsAuthorizedUnsigned(contract))
	got, err := store.Code(contract)
	require.NoError(t, err)
	assert.Empty(t, got)

	// second call must not capture the hidden empty code
	require.NoError(t, r.Impersonate(contract, store))

	r.StopImpersonating(contract, store)
	assert.False(t, r.IsAuthorizedUnsigned(contract))
	got, err = store.Code(contract)
	require.NoError(t, err)
	assert.Equal(t, code, got)
}

func TestImpersonateEOA(t *testing.T) {
	store := state.NewStore(nil)
	r := newRegistry()

	assert.False(t, r.IsAuthorizedUnsigned(eoa))
	require.NoError(t, r.Impersonate(eoa, store))
	assert.True(t, r.IsAuthorizedUnsigned(eoa))
	assert.Equal(t, []common.Address{eoa}, r.Active())

	r.StopImpersonating(eoa, store)
	r.StopImpersonating(eoa, store)
	assert.False(t, r.IsAuthorizedUnsigned(eoa))
	assert.Empty(t, r.Active())
}

type failingStore struct{}

var errMiss = errors.New("miss")

func (failingStore) Code(common.Address) ([]byte, error) { return nil, errMiss }
func (failingStore) SetCode(common.Address, []byte)       {}

func TestImpersonateReadFailureLeavesNoRecord(t *testing.T) {
	r := newRegistry()
	require.ErrorIs(t, r.Impersonate(eoa, failingStore{}), errMiss)
	assert.False(t, r.IsAuthorizedUnsigned(eoa))
}

func TestAutoImpersonate(t *testing.T) {
	store := state.NewStore(nil)
	store.SetCode(contract, []byte{0x01})
	r := newRegistry()

	r.SetAutoImpersonate(true)
	assert.True(t, r.IsAuthorizedUnsigned(contract))
	assert.True(t, r.IsAuthorizedUnsigned(eoa))
	code, err := store.Code(contract)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, code)

	r.SetAutoImpersonate(false)
	assert.False(t, r.IsAuthorizedUnsigned(eoa))
}

func TestCopyIsIndependent(t *testing.T) {
	store := state.NewStore(nil)
	r := newRegistry()
	require.NoError(t, r.Impersonate(eoa, store))

	cpy := r.Copy()
	r.StopImpersonating(eoa, store)
	assert.True(t, cpy.IsAuthorizedUnsigned(eoa))
	assert.False(t, r.IsAuthorizedUnsigned(eoa))
}
