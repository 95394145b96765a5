package cipher

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Base64EncodeOp encodes data as standard Base64
type Base64EncodeOp struct {
	BaseOperation
}

func (op *Base64EncodeOp) Execute(_ context.Context, input []byte, _ map[string]any) ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(input)), nil
}

// Base64DecodeOp decodes standard Base64 data. Surrounding whitespace is
// ignored so file input with a trailing newline decodes cleanly.
type Base64DecodeOp struct {
	BaseOperation
}

func (op *Base64DecodeOp) Execute(_ context.Context, input []byte, _ map[string]any) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(input)))
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}
	return decoded, nil
}

// HexEncodeOp encodes bytes as a lowercase hexadecimal string
type HexEncodeOp struct {
	BaseOperation
}

func (op *HexEncodeOp) Execute(_ context.Context, input []byte, _ map[string]any) ([]byte, error) {
	return []byte(hex.EncodeToString(input)), nil
}

// HexDecodeOp decodes hexadecimal text, tolerating 0x and \x prefixes and
// common separators.
type HexDecodeOp struct {
	BaseOperation
}

var hexSeparators = strings.NewReplacer(" ", "", ":", "", "-", "", "\n", "")

func (op *HexDecodeOp) Execute(_ context.Context, input []byte, _ map[string]any) ([]byte, error) {
	text := strings.TrimSpace(string(input))
	text = strings.TrimPrefix(text, "0x")
	text = strings.TrimPrefix(text, "\\x")
	text = hexSeparators.Replace(text)

	decoded, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("hex decode failed: %w", err)
	}
	return decoded, nil
}

func init() {
	substituteEncode := &SubstituteOp{
		BaseOperation: BaseOperation{
			NameValue:        "substitute_encode",
			TypeValue:        OperationTypeEncode,
			DescriptionValue: "Encode text with the seeded letter substitution",
		},
	}
	substituteDecode := &SubstituteOp{
		BaseOperation: BaseOperation{
			NameValue:        "substitute_decode",
			TypeValue:        OperationTypeDecode,
			DescriptionValue: "Decode text produced by the seeded letter substitution",
		},
	}
	substituteEncode.ReverseOp = substituteDecode
	substituteDecode.ReverseOp = substituteEncode

	hexEncode := &HexEncodeOp{
		BaseOperation: BaseOperation{
			NameValue:        "hex_encode",
			TypeValue:        OperationTypeEncode,
			DescriptionValue: "Encode bytes as hexadecimal string",
		},
	}
	hexDecode := &HexDecodeOp{
		BaseOperation: BaseOperation{
			NameValue:        "hex_decode",
			TypeValue:        OperationTypeDecode,
			DescriptionValue: "Decode hexadecimal string to bytes",
		},
	}
	hexEncode.ReverseOp = hexDecode
	hexDecode.ReverseOp = hexEncode

	base64Encode := &Base64EncodeOp{
		BaseOperation: BaseOperation{
			NameValue:        "base64_encode",
			TypeValue:        OperationTypeEncode,
			DescriptionValue: "Encode data as standard Base64",
		},
	}
	base64Decode := &Base64DecodeOp{
		BaseOperation: BaseOperation{
			NameValue:        "base64_decode",
			TypeValue:        OperationTypeDecode,
			DescriptionValue: "Decode standard Base64 data",
		},
	}
	base64Encode.ReverseOp = base64Decode
	base64Decode.ReverseOp = base64Encode

	mustRegister(substituteEncode, substituteDecode, hexEncode, hexDecode, base64Encode, base64Decode)
}
