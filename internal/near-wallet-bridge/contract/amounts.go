package contract

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// YoctoDecimals is the number of decimal places between NEAR and yoctoNEAR.
const YoctoDecimals = 24

var ErrInvalidAmount = errors.New("invalid NEAR amount")

// FormatNEAR renders a yoctoNEAR integer string as NEAR without trailing zeros.
func FormatNEAR(yocto string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(yocto))
	if err != nil {
		return "", errors.Wrapf(ErrInvalidAmount, "parse %q: %v", yocto, err)
	}
	if !d.IsInteger() || d.IsNegative() {
		return "", errors.Wrapf(ErrInvalidAmount, "%q is not a non-negative yocto integer", yocto)
	}
	return d.Shift(-YoctoDecimals).String(), nil
}

// ParseNEAR converts a NEAR amount such as "0.2" to a yoctoNEAR integer string.
func ParseNEAR(near string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(near))
	if err != nil {
		return "", errors.Wrapf(ErrInvalidAmount, "parse %q: %v", near, err)
	}
	if d.IsNegative() {
		return "", errors.Wrapf(ErrInvalidAmount, "%q is negative", near)
	}
	yocto := d.Shift(YoctoDecimals)
	if !yocto.IsInteger() {
		return "", errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimal places", near, YoctoDecimals)
	}
	return yocto.String(), nil
}

// DepositNEAR is the mint deposit expressed in NEAR.
func DepositNEAR() string {
	s, _ := FormatNEAR(MintDeposit)
	return s
}
