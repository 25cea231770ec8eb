package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/s4li/talamala-v4-sub000/internal/services"
)

func TestDomainStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{services.CodeNotFound, http.StatusNotFound},
		{services.CodeInvalidClaim, http.StatusForbidden},
		{services.CodeInvalidOwnership, http.StatusForbidden},
		{services.CodeInvalidState, http.StatusConflict},
		{services.CodeConcurrencyConflict, http.StatusConflict},
		{services.CodeInsufficientFunds, http.StatusUnprocessableEntity},
		{services.CodeInsufficientInventory, http.StatusUnprocessableEntity},
		{services.CodeStalePrice, http.StatusServiceUnavailable},
		{"SOMETHING_ELSE", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, domainStatus(tt.code))
		})
	}
}
