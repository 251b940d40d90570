package onchain

// errors.go — revert-data decoding.
//
// The market contract reverts with MarketError(uint256 code); the code is
// the contract's own error enum (20 = position not found, 24 = order not
// found, 55 = funding interval not elapsed). We decode the ABI-encoded
// revert data when the RPC exposes it, and fall back to scanning the
// message for a "#<code>" marker for RPCs that only stringify.

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/driftmark/keeper/internal/domain"
)

// errorData is the subset of go-ethereum's rpc.DataError we rely on.
type errorData interface {
	Error() string
	ErrorData() interface{}
}

// revertSelector is the 4-byte selector of the standard Error(string).
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

var codeMarkerRe = regexp.MustCompile(`#(\d+)`)

// decodeRevert classifies an eth_call / submission error. Contract-level
// reverts with a recognizable code become *domain.ChainError; everything
// else (transport faults, unknown reverts) passes through untouched.
func decodeRevert(err error) error {
	if err == nil {
		return nil
	}

	if de, ok := err.(errorData); ok {
		if ce := decodeRevertData(de.ErrorData()); ce != nil {
			return ce
		}
	}

	// Some RPCs flatten the revert into the message, e.g.
	// "execution reverted: PositionNotFound (#20)".
	if ce := codeFromText(err.Error()); ce != nil {
		return ce
	}

	return err
}

// decodeRevertData decodes ABI-encoded revert data into a ChainError, or
// nil when the data is absent or not one of the encodings we know.
func decodeRevertData(data interface{}) *domain.ChainError {
	hexStr, ok := data.(string)
	if !ok {
		return nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil || len(raw) < 4 {
		return nil
	}

	marketErr := marketABI.Errors["MarketError"]
	if bytes.Equal(raw[:4], marketErr.ID.Bytes()[:4]) {
		vals, err := marketErr.Inputs.Unpack(raw[4:])
		if err != nil || len(vals) == 0 {
			return nil
		}
		code, ok := vals[0].(*big.Int)
		if !ok || !code.IsUint64() {
			return nil
		}
		return &domain.ChainError{Code: domain.ErrorCode(code.Uint64())}
	}

	if bytes.Equal(raw[:4], revertSelector) {
		// Error(string) — decode the reason and try the "#<code>" marker.
		reason, err := abi.UnpackRevert(raw)
		if err != nil {
			return nil
		}
		return codeFromText(reason)
	}

	return nil
}

// codeFromText extracts a "#<code>" marker from a revert reason string.
func codeFromText(s string) *domain.ChainError {
	m := codeMarkerRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	code, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &domain.ChainError{Code: domain.ErrorCode(code), Msg: s}
}
