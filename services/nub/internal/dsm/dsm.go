// services/nub/internal/dsm/dsm.go

// Package dsm implements the two-step device-specific-method query that some
// firmware uses to hand out I²C resources: function 0 returns a bitmap of the
// supported functions, and a supported function index returns a resource
// template in the same encoding as _CRS.
package dsm

import (
	"encoding/hex"
	"strings"

	"i2cnub-go/errcode"
)

// TP7G is the I²C resource _DSM identifier.
const TP7G = "ef87eb82-f951-46da-84ec-14871ac6f84b"

const (
	Revision       = 1
	SupportIndex   = 0 // function returning the support bitmap
	ResourcesIndex = 1 // function returning the resource template
)

// Method names, in the order they are tried.
const (
	MethodXDSM = "XDSM" // renamed method left by firmware patches; deprecated
	MethodDSM  = "_DSM"
)

// Evaluator runs a firmware method.
type Evaluator interface {
	Evaluate(method string, args ...any) (any, error)
}

// GUID returns the 16-byte mixed-endian encoding of a textual UUID: the first
// three fields little-endian, the rest as written.
func GUID(s string) ([16]byte, error) {
	var g [16]byte
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return g, errcode.New(errcode.InvalidArgument, "dsm_guid", "malformed uuid "+s)
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil {
		return g, errcode.Wrap(errcode.InvalidArgument, "dsm_guid", err)
	}
	copy(g[:], raw)
	g[0], g[1], g[2], g[3] = g[3], g[2], g[1], g[0]
	g[4], g[5] = g[5], g[4]
	g[6], g[7] = g[7], g[6]
	return g, nil
}

// Args builds the argument package for function index of uuid.
func Args(uuid string, index uint32) ([]any, error) {
	g, err := GUID(uuid)
	if err != nil {
		return nil, err
	}
	return []any{g[:], uint64(Revision), uint64(index), []any{}}, nil
}

// Evaluate runs function index, trying XDSM before _DSM. It reports which
// method answered.
func Evaluate(dev Evaluator, uuid string, index uint32) (any, string, error) {
	args, err := Args(uuid, index)
	if err != nil {
		return nil, "", err
	}
	if res, err := dev.Evaluate(MethodXDSM, args...); err == nil {
		return res, MethodXDSM, nil
	}
	res, err := dev.Evaluate(MethodDSM, args...)
	if err != nil {
		return nil, "", errcode.Wrap(errcode.NotFound, "dsm", err)
	}
	return res, MethodDSM, nil
}

// Resources fetches the resource template of function index after checking
// the support bitmap.
//
//	not_found        no XDSM/_DSM method answered
//	invalid_argument a query returned something other than a non-empty buffer
//	unsupported      index is not set in the support bitmap
func Resources(dev Evaluator, index uint32) ([]byte, string, error) {
	res, _, err := Evaluate(dev, TP7G, SupportIndex)
	if err != nil {
		return nil, "", err
	}
	bitmap, ok := res.([]byte)
	if !ok || len(bitmap) == 0 {
		return nil, "", errcode.New(errcode.InvalidArgument, "dsm_support", "support query did not return a buffer")
	}
	if index > 7 || bitmap[0]&(1<<index) == 0 {
		return nil, "", errcode.New(errcode.Unsupported, "dsm_support", "index not in bitmap 0x"+hex.EncodeToString(bitmap[:1]))
	}

	res, method, err := Evaluate(dev, TP7G, index)
	if err != nil {
		return nil, "", err
	}
	blob, ok := res.([]byte)
	if !ok {
		return nil, "", errcode.New(errcode.InvalidArgument, "dsm_resources", "resource query did not return a buffer")
	}
	return blob, method, nil
}
