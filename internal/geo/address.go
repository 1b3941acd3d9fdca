// Package geo routes postal codes to their street-name registry and resolves
// addresses against the Flemish address-match API.
package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when the submitted address cannot be used at all.
var ErrInvalidAddress = errors.New("invalid address")

// Address is the address exactly as the citizen entered it.
type Address struct {
	PostalCode  int
	StreetName  string
	HouseNumber string
}

// ResolvedAddress holds the registry identifiers for an Address. It is only
// valid for the request that produced it.
type ResolvedAddress struct {
	MunicipalityID   string
	StreetID         string
	MunicipalityName string
	Backend          string
}

// ParseAddress validates raw form input.
func ParseAddress(postalCode, streetName, houseNumber string) (Address, error) {
	postalCode = strings.TrimSpace(postalCode)
	streetName = strings.TrimSpace(streetName)
	houseNumber = strings.TrimSpace(houseNumber)

	if postalCode == "" || streetName == "" || houseNumber == "" {
		return Address{}, fmt.Errorf("%w: postal code, street name and house number are required", ErrInvalidAddress)
	}
	if len(postalCode) != 4 || strings.Trim(postalCode, "0123456789") != "" {
		return Address{}, fmt.Errorf("%w: postal code must have 4 digits", ErrInvalidAddress)
	}
	code, err := strconv.Atoi(postalCode)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	return Address{
		PostalCode:  code,
		StreetName:  streetName,
		HouseNumber: houseNumber,
	}, nil
}

// PostalCodeString renders the postal code with its leading zeros.
func (a Address) PostalCodeString() string {
	return fmt.Sprintf("%04d", a.PostalCode)
}
