// Package unit converts between the ledger's base unit (e.g. sun) and the
// human display unit (e.g. TRX) with a fixed divisor of 10^decimals.
//
// All arithmetic is done on big.Int; no float ever touches an amount.
package unit

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidAmount 金额不是有效的正数
var ErrInvalidAmount = errors.New("invalid amount")

// maxExponent caps scientific notation so "1e999999" cannot allocate a huge number.
const maxExponent = 256

var decimalPattern = regexp.MustCompile(`^([+-]?)(\d*)(?:\.(\d*))?(?:[eE]([+-]?\d+))?$`)

// Converter 固定精度的单位换算
type Converter struct {
	decimals int
	divisor  *big.Int
}

// NewConverter 创建换算器，decimals 为展示单位相对基础单位的小数位数
func NewConverter(decimals int) (Converter, error) {
	if decimals < 0 || decimals > 77 {
		return Converter{}, fmt.Errorf("decimals out of range: %d", decimals)
	}
	return Converter{
		decimals: decimals,
		divisor:  new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil),
	}, nil
}

// MustConverter 同 NewConverter，出错时 panic
func MustConverter(decimals int) Converter {
	c, err := NewConverter(decimals)
	if err != nil {
		panic(err)
	}
	return c
}

// Sun TRX 的换算器（1 TRX = 1e6 sun）
var Sun = MustConverter(6)

// Decimals 小数位数
func (c Converter) Decimals() int {
	return c.decimals
}

// Divisor 返回除数的副本
func (c Converter) Divisor() *big.Int {
	return new(big.Int).Set(c.divisor)
}

// ToDisplay 基础单位 -> 展示单位字符串，精确且去掉末尾的 0
func (c Converter) ToDisplay(base *big.Int) string {
	if base == nil {
		return "0"
	}

	abs := new(big.Int).Abs(base)
	q, r := new(big.Int).QuoRem(abs, c.divisor, new(big.Int))

	var sb strings.Builder
	if base.Sign() < 0 {
		sb.WriteByte('-')
	}
	sb.WriteString(q.String())

	if r.Sign() != 0 {
		frac := r.String()
		frac = strings.Repeat("0", c.decimals-len(frac)) + frac
		sb.WriteByte('.')
		sb.WriteString(strings.TrimRight(frac, "0"))
	}
	return sb.String()
}

// ToBase 展示单位字符串 -> 基础单位，超出最小单位的部分截断
func (c Converter) ToBase(human string) (*big.Int, error) {
	s := strings.TrimSpace(human)
	m := decimalPattern.FindStringSubmatch(s)
	if m == nil || (m[2] == "" && m[3] == "") {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, human)
	}
	sign, intPart, fracPart, expPart := m[1], m[2], m[3], m[4]

	exp := 0
	if expPart != "" {
		e, err := strconv.Atoi(expPart)
		if err != nil || e > maxExponent || e < -maxExponent {
			return nil, fmt.Errorf("%w: %q exponent out of range", ErrInvalidAmount, human)
		}
		exp = e
	}

	digits, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, human)
	}

	// value = digits * 10^(exp - len(frac)); base = value * 10^decimals
	shift := c.decimals + exp - len(fracPart)
	if shift >= 0 {
		digits.Mul(digits, pow10(shift))
	} else {
		digits.Quo(digits, pow10(-shift))
	}

	if sign == "-" {
		digits.Neg(digits)
	}
	return digits, nil
}

// ParsePositive 校验并换算一个必须大于 0 的金额
func (c Converter) ParsePositive(human string) (*big.Int, error) {
	base, err := c.ToBase(human)
	if err != nil {
		return nil, err
	}
	if base.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be greater than 0%s", ErrInvalidAmount, human, c.smallestUnitHint())
	}
	return base, nil
}

func (c Converter) smallestUnitHint() string {
	if c.decimals == 0 {
		return ""
	}
	return fmt.Sprintf(" (smallest unit is 1e-%d)", c.decimals)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
