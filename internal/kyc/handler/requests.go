package handler

import (
	"fmt"
	"strings"

	"presale/internal/kyc"
	dErrors "presale/pkg/domain-errors"
)

// AddressEntry is one element of the administrative upload body.
type AddressEntry struct {
	Address string `json:"address"`
}

// UploadAddressesRequest is the ordered batch posted to /admin/uploadaddr.
type UploadAddressesRequest []AddressEntry

func (r *UploadAddressesRequest) Validate() error {
	if r == nil || len(*r) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one address is required")
	}
	for i := range *r {
		(*r)[i].Address = strings.TrimSpace((*r)[i].Address)
		if (*r)[i].Address == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("address %d is empty", i))
		}
	}
	return nil
}

// Addresses returns the batch in upload order.
func (r UploadAddressesRequest) Addresses() []kyc.Address {
	out := make([]kyc.Address, len(r))
	for i, e := range r {
		out[i] = kyc.Address(e.Address)
	}
	return out
}

// RegistrationRequest is the token allotment registration body.
type RegistrationRequest struct {
	EthAddr string `json:"eth_addr"`
}

func (r *RegistrationRequest) Validate() error {
	r.EthAddr = strings.TrimSpace(r.EthAddr)
	if r.EthAddr == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid address input")
	}
	return nil
}
