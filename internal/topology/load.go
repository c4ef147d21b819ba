package topology

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// DecodeYAML reads a declaration from r. Unknown fields are rejected.
func DecodeYAML(r io.Reader) (Declaration, error) {
	var decl Declaration
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&decl); err != nil {
		return Declaration{}, errors.Wrap(err, "decoding topology declaration")
	}
	return decl, nil
}

// LoadFile reads a YAML declaration from path.
func LoadFile(path string) (Declaration, error) {
	f, err := os.Open(path)
	if err != nil {
		return Declaration{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	decl, err := DecodeYAML(f)
	if err != nil {
		return Declaration{}, errors.Wrapf(err, "loading %s", path)
	}
	return decl, nil
}
