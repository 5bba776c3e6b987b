package controller

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"madebuy/internal/service"
	"madebuy/pkg/etsy"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrProfileNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", service.ErrConnectionNotFound), http.StatusNotFound},
		{service.ErrDefaultProfileInUse, http.StatusConflict},
		{service.ErrNoShippingRate, http.StatusUnprocessableEntity},
		{service.ErrNoEtsyShop, http.StatusUnprocessableEntity},
		{service.ErrMissingPrice, http.StatusUnprocessableEntity},
		{service.ErrStateInvalid, http.StatusBadRequest},
		{&etsy.APIError{StatusCode: 500, Message: "down"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
