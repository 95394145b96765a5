// Package cipher exposes the substitution cipher and a few byte codecs as
// named, reversible operations that can be chained into pipelines and saved
// as recipes.
//
// # Operations
//
//	op, _ := cipher.GetOperation("substitute_encode")
//	out, _ := op.Execute(ctx, []byte("hello"), map[string]any{"seed": 7})
//
// Registered operations:
//   - substitute_encode/decode - seeded letter substitution; params "seed"
//     (defaults to 3) and "json_path" (transform one string field of a JSON document)
//   - hex_encode/decode - hexadecimal text
//   - base64_encode/decode - standard Base64
//
// Encoding with a reserved seed (3 or 4) uppercases the output, so decoding
// it yields uppercase plaintext.
//
// # Pipelines and recipes
//
//	p := &cipher.Pipeline{
//	    Operations: []cipher.OperationConfig{
//	        {Name: "substitute_encode", Parameters: map[string]any{"seed": 11}},
//	        {Name: "base64_encode"},
//	    },
//	    Reversible: true,
//	}
//	encoded, _ := p.Execute(ctx, []byte("attack at dawn"))
//	back, _ := p.Reverse()
//	plain, _ := back.Execute(ctx, encoded)
//
// A RecipeManager stores named pipelines as JSON files, one per recipe.
//
// # Thread Safety
//
// The registry and the shared table cache are safe for concurrent use.
// RecipeManager uses internal locking.
package cipher
