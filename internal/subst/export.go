package subst

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Dump is the exported view of a cipher's letter tables.
type Dump struct {
	Seed           int64             `json:"seed" yaml:"seed" cbor:"seed"`
	Reserved       bool              `json:"reserved" yaml:"reserved" cbor:"reserved"`
	ForcedUpper    bool              `json:"forced_uppercase" yaml:"forced_uppercase" cbor:"forced_uppercase"`
	Fingerprint    string            `json:"fingerprint" yaml:"fingerprint" cbor:"fingerprint"`
	FixtureVersion string            `json:"fixture_version,omitempty" yaml:"fixture_version,omitempty" cbor:"fixture_version,omitempty"`
	Encode         map[string]string `json:"encode" yaml:"encode" cbor:"encode"`
	Decode         map[string]string `json:"decode" yaml:"decode" cbor:"decode"`
}

// Format names an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("subst: CBOR encoder initialization failed: " + err.Error())
	}
}

// Dump returns the uppercase letter mappings of c.
func (c *Cipher) Dump() Dump {
	d := Dump{
		Seed:        c.seed,
		Reserved:    c.reserved,
		ForcedUpper: c.ForcesUppercase(ModeEncode),
		Fingerprint: c.fingerprint,
		Encode:      make(map[string]string, alphabetSize),
		Decode:      make(map[string]string, alphabetSize),
	}
	if c.reserved {
		d.FixtureVersion = reservedVersion
	}
	for i := 0; i < alphabetSize; i++ {
		letter := rune(Alphabet[i])
		d.Encode[string(letter)] = string(c.encode.Map(letter))
		d.Decode[string(letter)] = string(c.decode.Map(letter))
	}
	return d
}

// Export serialises the dump of c in the requested format.
func (c *Cipher) Export(format Format) ([]byte, error) {
	d := c.Dump()
	switch Format(strings.ToLower(string(format))) {
	case FormatJSON, "":
		return json.MarshalIndent(d, "", "  ")
	case FormatYAML:
		return yaml.Marshal(d)
	case FormatCBOR:
		return cborEnc.Marshal(d)
	default:
		return nil, fmt.Errorf("unknown export format %q (want json, yaml or cbor)", format)
	}
}
