package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrCartNotFound   = errors.New("cart not found")
	ErrCartEmpty      = errors.New("cart is empty")
	ErrStoreClosed    = errors.New("store is closed")
	ErrComandaClosed  = errors.New("comanda is not open")
	ErrForbidden      = errors.New("forbidden")
	ErrBadCredential  = errors.New("invalid password")

	// ErrPaymentNotConfirmed means a redirect callback arrived without an
	// approved status or without the cart reference.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")

	// ErrGatewayNotConfigured is returned when a tenant has no payment
	// gateway API key; the payment flow must abort with an explicit message.
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
)
