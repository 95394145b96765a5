package subst

// Punctuation is the ASCII punctuation set covered by cipher tables.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Whitespace is the whitespace set covered by cipher tables.
const Whitespace = " \t\n\r\v\f"

// Digits is the digit set covered by cipher tables.
const Digits = "0123456789"

const tableSize = 128

// domain marks the ASCII bytes every table defines an image for.
var domain = func() [tableSize]bool {
	var d [tableSize]bool
	for c := 'A'; c <= 'Z'; c++ {
		d[c] = true
		d[c+('a'-'A')] = true
	}
	for _, set := range []string{Digits, Punctuation, Whitespace} {
		for i := 0; i < len(set); i++ {
			d[set[i]] = true
		}
	}
	return d
}()

// InDomain reports whether r is one of the characters a Table maps
// explicitly.
func InDomain(r rune) bool {
	return r >= 0 && r < tableSize && domain[r]
}

// Table is a total character mapping over the cipher domain. Runes outside
// the domain have no entry and map to themselves.
type Table struct {
	images [tableSize]byte
}

func identityTable() Table {
	var t Table
	for i := range t.images {
		t.images[i] = byte(i)
	}
	return t
}

// Lookup returns the image of r and whether r belongs to the table domain.
func (t *Table) Lookup(r rune) (rune, bool) {
	if !InDomain(r) {
		return r, false
	}
	return rune(t.images[r]), true
}

// Map returns the image of r, or r itself when r has no entry.
func (t *Table) Map(r rune) rune {
	img, _ := t.Lookup(r)
	return img
}

// Letters returns the uppercase letter images in alphabet order.
func (t *Table) Letters() Permutation {
	var p Permutation
	copy(p[:], t.images['A':'Z'+1])
	return p
}

// Build expands p into an encode table and its letter-wise inverse. Lowercase
// letters mirror the uppercase images and every other domain character maps
// to itself in both tables.
func Build(p Permutation) (encode, decode Table) {
	encode = identityTable()
	decode = identityTable()
	for i := 0; i < alphabetSize; i++ {
		upper := Alphabet[i]
		lower := upper + ('a' - 'A')
		img := p[i]
		encode.images[upper] = img
		encode.images[lower] = img + ('a' - 'A')
		decode.images[img] = upper
		decode.images[img+('a'-'A')] = lower
	}
	return encode, decode
}
