package service

import "errors"

// 领域错误，由 controller 映射为 HTTP 状态码
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProfileNotFound     = errors.New("shipping profile not found")
	ErrDefaultProfileInUse = errors.New("cannot delete the default shipping profile while other profiles exist; set another default first")
	ErrZoneNotFound        = errors.New("shipping zone not found")
	ErrNoShippingRate      = errors.New("no shipping rate available for destination")

	ErrPieceNotFound      = errors.New("piece not found")
	ErrNotLinked          = errors.New("piece is not linked to an etsy listing")
	ErrMissingPrice       = errors.New("piece has no price; etsy listings require one")
	ErrNoEtsyShop         = errors.New("etsy account has no shop")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrConnectionNotFound = errors.New("marketplace connection not found")
	ErrConnectionErrored  = errors.New("marketplace connection needs re-authorization")
	ErrStateInvalid       = errors.New("oauth state is invalid or expired")
)
