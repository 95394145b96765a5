package subst

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Alphabet is the ordered set of letters a Permutation is defined over.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const alphabetSize = len(Alphabet)

// pcgStream is the second PCG seed word. Changing it changes every generated
// table, so it is fixed for the lifetime of the format.
const pcgStream uint64 = 0x5375627374697475

// Permutation maps each letter of Alphabet to its image. Index 0 holds the
// image of 'A', index 25 the image of 'Z'.
type Permutation [alphabetSize]byte

// Identity returns the permutation that maps every letter to itself.
func Identity() Permutation {
	var p Permutation
	copy(p[:], Alphabet)
	return p
}

// ParsePermutation reads a 26 letter image string such as
// "HSRELTPYCAUWIDMZNJKVFBOXQG". Lowercase input is accepted.
func ParsePermutation(images string) (Permutation, error) {
	var p Permutation
	images = strings.ToUpper(strings.TrimSpace(images))
	if len(images) != alphabetSize {
		return p, fmt.Errorf("permutation must have %d letters, got %d", alphabetSize, len(images))
	}
	copy(p[:], images)
	if err := p.Validate(); err != nil {
		return Permutation{}, err
	}
	return p, nil
}

// Generate derives the permutation for seed with a seeded Fisher–Yates
// shuffle. The result depends only on seed.
func Generate(seed int64) Permutation {
	p := Identity()
	src := rand.NewPCG(uint64(seed), pcgStream)
	for i := alphabetSize - 1; i > 0; i-- {
		j := int(src.Uint64() % uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// Image returns the image of the uppercase letter u. Any other byte is
// returned unchanged.
func (p Permutation) Image(u byte) byte {
	if u < 'A' || u > 'Z' {
		return u
	}
	return p[u-'A']
}

// Validate reports whether p is a bijection over Alphabet.
func (p Permutation) Validate() error {
	var seen [alphabetSize]bool
	for i, img := range p {
		if img < 'A' || img > 'Z' {
			return fmt.Errorf("letter %c maps to non-letter %q", Alphabet[i], img)
		}
		if seen[img-'A'] {
			return fmt.Errorf("letter %c maps to %c which is already used", Alphabet[i], img)
		}
		seen[img-'A'] = true
	}
	return nil
}

// Inverse returns the permutation q with q.Image(p.Image(x)) == x.
func (p Permutation) Inverse() Permutation {
	var q Permutation
	for i, img := range p {
		q[img-'A'] = Alphabet[i]
	}
	return q
}

// With returns a copy of p where from maps to to. It does not restore
// bijectivity; callers validate the final result.
func (p Permutation) With(from, to byte) Permutation {
	if from >= 'A' && from <= 'Z' {
		p[from-'A'] = to
	}
	return p
}

// String returns the images in alphabet order.
func (p Permutation) String() string {
	return string(p[:])
}
