package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_FinalSubsets(t *testing.T) {
	for _, s := range AllStatuses() {
		if s.IsFinalSuccess() || s.IsFinalReturn() {
			require.True(t, s.IsFinal(), s)
		}
		if s.IsFinal() {
			require.False(t, s.CanTransition(), s)
		}
		require.True(t, s.IsKnown())
	}
}

func TestStatus_Membership(t *testing.T) {
	require.Len(t, AllStatuses(), 26)
	require.True(t, StatusPerformerFound.IsRouted())
	require.True(t, StatusPickupArrived.IsRouted())
	require.False(t, StatusPickuped.IsRouted())
	require.True(t, StatusCancelledWithPayment.IsFinal())
	require.False(t, StatusReturning.IsFinal())
	require.True(t, StatusReturning.CanTransition())
	require.True(t, StatusReturnedFinish.IsFinalReturn())
	require.False(t, StatusDelivered.IsFinalReturn())
	require.False(t, ClaimStatus("bogus").IsKnown())
	require.False(t, ClaimStatus("bogus").CanTransition())

	for _, s := range RoutedStatuses() {
		require.True(t, s.IsRouted())
	}
}
