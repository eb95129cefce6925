package vegetation

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Save persists the pre-pass result of one partition with gob.
func (r *PassResult) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing LAI pre-pass %s: %w", path, err)
	}
	defer f.Close()
	if err = gob.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("encoding LAI pre-pass %s: %w", path, err)
	}
	return nil
}

// LoadPassResult reads a partition's pre-pass result back.
func LoadPassResult(path string) (*PassResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading LAI pre-pass %s: %w", path, err)
	}
	defer f.Close()
	r := &PassResult{}
	if err = gob.NewDecoder(f).Decode(r); err != nil {
		return nil, fmt.Errorf("decoding LAI pre-pass %s: %w", path, err)
	}
	return r, nil
}
