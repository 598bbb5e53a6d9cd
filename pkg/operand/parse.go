package operand

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseRegister parses a register name such as "R0" or "M15".
func ParseRegister(s string) (Register, error) {
	if len(s) < 2 {
		return Register{}, errors.Errorf("invalid register %q", s)
	}
	var name RegisterName
	switch s[0] {
	case 'R':
		name = BankR
	case 'C':
		name = BankC
	case 'Q':
		name = BankQ
	case 'M':
		name = BankM
	default:
		return Register{}, errors.Errorf("invalid register bank in %q", s)
	}
	index, err := strconv.Atoi(s[1:])
	if err != nil {
		return Register{}, errors.Errorf("invalid register index in %q", s)
	}
	reg := Register{Name: name, Index: index}
	if err := reg.Validate(); err != nil {
		return Register{}, err
	}
	return reg, nil
}

// ParseAddress parses an array reference in one of the forms "@2",
// "@2[3]", "@2[R0]", "@2[0:4]" or "@2[R0:R1]", returning an Address,
// ArrayEntry or ArraySlice.
func ParseAddress(s string) (Operand, error) {
	if !strings.HasPrefix(s, "@") {
		return nil, errors.Errorf("address %q does not start with @", s)
	}
	rest := s[1:]
	open := strings.IndexByte(rest, '[')
	if open < 0 {
		addr, err := parseRawAddress(rest)
		if err != nil {
			return nil, err
		}
		return addr, nil
	}
	if !strings.HasSuffix(rest, "]") {
		return nil, errors.Errorf("unterminated index in %q", s)
	}
	addr, err := parseRawAddress(rest[:open])
	if err != nil {
		return nil, err
	}
	inner := rest[open+1 : len(rest)-1]
	if colon := strings.IndexByte(inner, ':'); colon >= 0 {
		start, err := parseRegOrImm(inner[:colon])
		if err != nil {
			return nil, err
		}
		stop, err := parseRegOrImm(inner[colon+1:])
		if err != nil {
			return nil, err
		}
		return ArraySlice{Address: addr, Start: start, Stop: stop}, nil
	}
	index, err := parseRegOrImm(inner)
	if err != nil {
		return nil, err
	}
	return ArrayEntry{Address: addr, Index: index}, nil
}

func parseRawAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid array address %q", s)
	}
	return Address(v), nil
}

func parseRegOrImm(s string) (RegOrImm, error) {
	if s == "" {
		return nil, errors.New("empty index operand")
	}
	if v, err := strconv.ParseInt(s, 10, 32); err == nil {
		return Immediate(v), nil
	}
	return ParseRegister(s)
}
