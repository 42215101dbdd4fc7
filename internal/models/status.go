package models

// ClaimStatus is a status of a claim on the remote platform.
type ClaimStatus string

const (
	StatusNew                          ClaimStatus = "new"
	StatusEstimating                   ClaimStatus = "estimating"
	StatusEstimatingFailed             ClaimStatus = "estimating_failed"
	StatusReadyForApproval             ClaimStatus = "ready_for_approval"
	StatusFailed                       ClaimStatus = "failed"
	StatusAccepted                     ClaimStatus = "accepted"
	StatusPerformerLookup              ClaimStatus = "performer_lookup"
	StatusPerformerDraft               ClaimStatus = "performer_draft"
	StatusPerformerFound               ClaimStatus = "performer_found"
	StatusPerformerNotFound            ClaimStatus = "performer_not_found"
	StatusCancelledByTaxi              ClaimStatus = "cancelled_by_taxi"
	StatusPickupArrived                ClaimStatus = "pickup_arrived"
	StatusReadyForPickupConfirmation   ClaimStatus = "ready_for_pickup_confirmation"
	StatusPickuped                     ClaimStatus = "pickuped"
	StatusDeliveryArrived              ClaimStatus = "delivery_arrived"
	StatusPayWaiting                   ClaimStatus = "pay_waiting"
	StatusReadyForDeliveryConfirmation ClaimStatus = "ready_for_delivery_confirmation"
	StatusDelivered                    ClaimStatus = "delivered"
	StatusDeliveredFinish              ClaimStatus = "delivered_finish"
	StatusReturning                    ClaimStatus = "returning"
	StatusReturnArrived                ClaimStatus = "return_arrived"
	StatusReadyForReturnConfirmation   ClaimStatus = "ready_for_return_confirmation"
	StatusReturnedFinish               ClaimStatus = "returned_finish"
	StatusCancelled                    ClaimStatus = "cancelled"
	StatusCancelledWithPayment         ClaimStatus = "cancelled_with_payment"
	StatusCancelledWithItemsOnHands    ClaimStatus = "cancelled_with_items_on_hands"
)

var allStatuses = []ClaimStatus{
	StatusNew,
	StatusEstimating,
	StatusEstimatingFailed,
	StatusReadyForApproval,
	StatusFailed,
	StatusAccepted,
	StatusPerformerLookup,
	StatusPerformerDraft,
	StatusPerformerFound,
	StatusPerformerNotFound,
	StatusCancelledByTaxi,
	StatusPickupArrived,
	StatusReadyForPickupConfirmation,
	StatusPickuped,
	StatusDeliveryArrived,
	StatusPayWaiting,
	StatusReadyForDeliveryConfirmation,
	StatusDelivered,
	StatusDeliveredFinish,
	StatusReturning,
	StatusReturnArrived,
	StatusReadyForReturnConfirmation,
	StatusReturnedFinish,
	StatusCancelled,
	StatusCancelledWithPayment,
	StatusCancelledWithItemsOnHands,
}

// Подмножества статусов задаются явно, а не по имени константы.
var (
	routedStatuses = setOf(StatusPerformerDraft, StatusPerformerFound, StatusPickupArrived)

	finalStatuses = setOf(
		StatusEstimatingFailed,
		StatusFailed,
		StatusPerformerNotFound,
		StatusCancelledByTaxi,
		StatusDelivered,
		StatusDeliveredFinish,
		StatusReturnedFinish,
		StatusCancelled,
		StatusCancelledWithItemsOnHands,
		StatusCancelledWithPayment,
	)

	finalSuccessStatuses = setOf(StatusDelivered, StatusDeliveredFinish)
	finalReturnStatuses  = setOf(StatusReturnedFinish)

	knownStatuses = setOf(allStatuses...)
)

func setOf(ss ...ClaimStatus) map[ClaimStatus]struct{} {
	m := make(map[ClaimStatus]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}

func in(set map[ClaimStatus]struct{}, s ClaimStatus) bool {
	_, ok := set[s]
	return ok
}

// AllStatuses returns every status known to the platform in lifecycle order.
func AllStatuses() []ClaimStatus {
	out := make([]ClaimStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// RoutedStatuses returns statuses of claims with an active courier assignment.
func RoutedStatuses() []ClaimStatus {
	return []ClaimStatus{StatusPerformerDraft, StatusPerformerFound, StatusPickupArrived}
}

func (s ClaimStatus) IsKnown() bool { return in(knownStatuses, s) }

// IsRouted reports whether a courier is assigned to the claim.
func (s ClaimStatus) IsRouted() bool { return in(routedStatuses, s) }

// IsFinal reports whether the claim can no longer change its status.
func (s ClaimStatus) IsFinal() bool { return in(finalStatuses, s) }

func (s ClaimStatus) IsFinalSuccess() bool { return in(finalSuccessStatuses, s) }

func (s ClaimStatus) IsFinalReturn() bool { return in(finalReturnStatuses, s) }

// CanTransition reports whether a claim in status s may still move to another status.
func (s ClaimStatus) CanTransition() bool {
	return s.IsKnown() && !s.IsFinal()
}
