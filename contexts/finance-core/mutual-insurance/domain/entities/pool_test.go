package entities

import (
	"testing"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"

	"github.com/stretchr/testify/require"
)

func TestPoolStakeAndWithdraw(t *testing.T) {
	pool, err := NewPool("pool-1", "admin-1", time.Now())
	require.NoError(t, err)
	require.Equal(t, "pool:pool-1", pool.CustodyAccount())

	require.NoError(t, pool.Stake("staker-a", 300, time.Now()))
	require.NoError(t, pool.Stake("staker-b", 200, time.Now()))
	require.NoError(t, pool.Stake("staker-a", 100, time.Now()))
	require.Equal(t, int64(600), pool.TotalAmount)
	require.Equal(t, []string{"staker-a", "staker-b"}, pool.Stakers)

	account, ok := pool.Account("staker-a")
	require.True(t, ok)
	require.Equal(t, int64(400), account.Balance)
	require.Equal(t, int64(400), account.TotalStaked)

	require.ErrorIs(t, pool.Withdraw("staker-b", 201, time.Now()), domainerrors.ErrInsufficientBalance)
	require.ErrorIs(t, pool.Withdraw("stranger", 1, time.Now()), domainerrors.ErrAccountNotFound)
	require.ErrorIs(t, pool.Withdraw("staker-b", 0, time.Now()), domainerrors.ErrInvalidInput)

	require.NoError(t, pool.Withdraw("staker-b", 50, time.Now()))
	account, _ = pool.Account("staker-b")
	require.Equal(t, int64(150), account.Balance)
	require.Equal(t, int64(50), account.TotalWithdrawn)
	require.Equal(t, int64(550), pool.TotalAmount)
	require.Zero(t, pool.Drift())
}

func TestPoolWithdrawBoundedByPoolTotal(t *testing.T) {
	pool, err := NewPool("pool-1", "admin-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, pool.Stake("staker-a", 500, time.Now()))
	require.NoError(t, pool.PayOut(400, time.Now()))

	err = pool.Withdraw("staker-a", 200, time.Now())
	require.ErrorIs(t, err, domainerrors.ErrInsufficientPoolBalance)
	require.Equal(t, int64(100), pool.TotalAmount)

	account, _ := pool.Account("staker-a")
	require.Equal(t, int64(500), account.Balance)
}

func TestPoolDebitsTrackSeparately(t *testing.T) {
	pool, err := NewPool("pool-1", "admin-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, pool.Stake("staker-a", 1000, time.Now()))

	require.ErrorIs(t, pool.PayOut(1001, time.Now()), domainerrors.ErrInsufficientPoolBalance)
	require.NoError(t, pool.PayOut(300, time.Now()))
	require.NoError(t, pool.AdminWithdraw(200, time.Now()))
	require.ErrorIs(t, pool.AdminWithdraw(501, time.Now()), domainerrors.ErrInsufficientPoolBalance)

	require.Equal(t, int64(500), pool.TotalAmount)
	require.Equal(t, int64(300), pool.PaidOut)
	require.Equal(t, int64(200), pool.AdminWithdrawn)
	require.Equal(t, int64(1000), pool.AccountsTotal())
	require.Zero(t, pool.Drift())

	pool.TotalAmount += 7
	require.Equal(t, int64(-7), pool.Drift())
}

func TestPoolCloneDetachesAccounts(t *testing.T) {
	pool, err := NewPool("pool-1", "admin-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, pool.Stake("staker-a", 10, time.Now()))

	clone := pool.Clone()
	require.NoError(t, clone.Stake("staker-a", 5, time.Now()))
	account, _ := pool.Account("staker-a")
	require.Equal(t, int64(10), account.Balance)
	require.Equal(t, int64(10), pool.TotalAmount)
}
