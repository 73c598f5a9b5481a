// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package ion

import (
	"math/big"
	"strings"
)

// Decimal is an arbitrary-precision signed decimal: coeff * 10^exp.
//
// Decimal distinguishes negative zero (a coefficient of 0 with Neg
// set) from positive zero, and preserves significant trailing zeros
// in the coefficient, per §3 of the specification. Equality under the
// data model requires both Coeff (with sign) and Exp to match; use
// Compare for numeric ordering that ignores representation.
type Decimal struct {
	Coeff big.Int // magnitude; always >= 0
	Neg   bool    // true for a negative coefficient, including -0
	Exp   int
}

// NewDecimal builds a Decimal from an int64 coefficient and exponent.
func NewDecimal(coeff int64, exp int) Decimal {
	d := Decimal{Exp: exp}
	if coeff < 0 {
		d.Neg = true
		d.Coeff.SetInt64(-coeff)
	} else {
		d.Coeff.SetInt64(coeff)
	}
	return d
}

// NegativeZero returns the distinguished decimal -0 * 10^exp.
func NegativeZero(exp int) Decimal {
	return Decimal{Neg: true, Exp: exp}
}

// IsZero reports whether the coefficient is zero (positive or negative).
func (d Decimal) IsZero() bool {
	return d.Coeff.Sign() == 0
}

// Sign returns -1, 0, or 1 following the sign of the coefficient,
// treating negative zero as having sign -1 is intentionally NOT done
// here: Sign reports numeric sign (0 for any zero), matching
// math/big.Int.Sign. Use Neg to distinguish -0 from +0.
func (d Decimal) Sign() int {
	return d.Coeff.Sign()
}

// Equal implements data-model equality: both coefficient (with sign)
// and exponent must match exactly.
func (d Decimal) Equal(o Decimal) bool {
	if d.Exp != o.Exp {
		return false
	}
	if d.IsZero() && o.IsZero() {
		return d.Neg == o.Neg
	}
	if d.Neg != o.Neg {
		return false
	}
	return d.Coeff.Cmp(&o.Coeff) == 0
}

// Compare returns the numeric ordering of d and o, ignoring exponent
// normalization and the sign of zero (-0 and +0 compare equal here).
func (d Decimal) Compare(o Decimal) int {
	da, db := d.rescaleCmp(o)
	return da.Cmp(db)
}

// rescaleCmp returns signed big.Int magnitudes of d and o scaled to
// a common exponent, suitable for Cmp.
func (d Decimal) rescaleCmp(o Decimal) (*big.Int, *big.Int) {
	a := new(big.Int).Set(&d.Coeff)
	if d.Neg {
		a.Neg(a)
	}
	b := new(big.Int).Set(&o.Coeff)
	if o.Neg {
		b.Neg(b)
	}
	exp := d.Exp
	if o.Exp < exp {
		exp = o.Exp
	}
	ten := big.NewInt(10)
	if d.Exp > exp {
		scale := new(big.Int).Exp(ten, big.NewInt(int64(d.Exp-exp)), nil)
		a.Mul(a, scale)
	}
	if o.Exp > exp {
		scale := new(big.Int).Exp(ten, big.NewInt(int64(o.Exp-exp)), nil)
		b.Mul(b, scale)
	}
	return a, b
}

// String renders the decimal using Ion's 'd' exponent notation, e.g.
// "123d-2" for 1.23, matching the text writer's decimal rendering.
func (d Decimal) String() string {
	var b strings.Builder
	if d.Neg {
		b.WriteByte('-')
	}
	b.WriteString(d.Coeff.String())
	if d.Exp != 0 {
		b.WriteByte('d')
		if d.Exp > 0 {
			b.WriteByte('+')
		}
		b.WriteString(big.NewInt(int64(d.Exp)).String())
	}
	return b.String()
}
