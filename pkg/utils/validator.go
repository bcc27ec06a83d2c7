package utils

import (
	"fmt"
	"regexp"
)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// taxIDWeights are the checksum weights for the 8-digit unified business
// number (統一編號).
var taxIDWeights = [8]int{1, 2, 1, 2, 1, 2, 4, 1}

// ValidateTaxID validates a Taiwan unified business number: 8 digits with a
// weighted checksum. The seventh digit 7 carries an alternate weight product,
// so either reading may satisfy the check.
func ValidateTaxID(taxID string) error {
	if len(taxID) != 8 || !digitsOnly.MatchString(taxID) {
		return fmt.Errorf("tax ID must be 8 digits: %s", taxID)
	}

	sum := 0
	for i, r := range taxID {
		p := int(r-'0') * taxIDWeights[i]
		sum += p/10 + p%10
	}

	if sum%5 == 0 {
		return nil
	}
	if taxID[6] == '7' && (sum+1)%5 == 0 {
		return nil
	}
	return fmt.Errorf("tax ID checksum failed: %s", taxID)
}

// ValidateTaxRegistrationNumber validates a Taiwan tax registration number
// (稅籍編號): 9 digits.
func ValidateTaxRegistrationNumber(reg string) error {
	if len(reg) != 9 || !digitsOnly.MatchString(reg) {
		return fmt.Errorf("tax registration number must be 9 digits: %s", reg)
	}
	return nil
}
