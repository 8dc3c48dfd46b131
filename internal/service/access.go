package service

import "homeservices/internal/models"

// CanAccessBooking is the single visibility rule for bookings and everything
// hanging off them: admins see all, customers their own, providers the ones
// assigned to their profile.
func CanAccessBooking(caller models.Caller, booking *models.Booking) bool {
	switch caller.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return booking.CustomerID == caller.UserID
	case models.RoleProvider:
		return caller.ProviderID != 0 && booking.AssignedTo(caller.ProviderID)
	}
	return false
}

// canClaimBooking extends CanAccessBooking for providers to unassigned bookings.
func canClaimBooking(caller models.Caller, booking *models.Booking) bool {
	if !caller.IsProvider() || caller.ProviderID == 0 {
		return false
	}
	return booking.ProviderID == nil || booking.AssignedTo(caller.ProviderID)
}

// BookingScope narrows a listing filter to what the caller may see.
func BookingScope(caller models.Caller, filter models.BookingFilter) models.BookingFilter {
	switch caller.Role {
	case models.RoleCustomer:
		filter.CustomerID = caller.UserID
	case models.RoleProvider:
		filter.ProviderID = caller.ProviderID
	}
	return filter
}
