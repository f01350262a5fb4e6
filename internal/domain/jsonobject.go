package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// jsonObject remembers every member of a decoded JSON object in document
// order. Members the Go type does not model are written back unchanged and
// modelled members keep their original position.
type jsonObject struct {
	raw *orderedmap.OrderedMap[string, json.RawMessage]
}

// member binds an object key to the Go value that models it.
type member struct {
	key string
	ptr any
	// omit drops the key on output when it is empty and the source
	// document did not carry it.
	omit bool
}

func (o *jsonObject) decode(data []byte, members []member) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return err
	}
	for _, m := range members {
		v, ok := raw.Get(m.key)
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, m.ptr); err != nil {
			return fmt.Errorf("%s: %w", m.key, err)
		}
	}
	o.raw = raw
	return nil
}

func (o jsonObject) encode(members []member) ([]byte, error) {
	out := orderedmap.New[string, json.RawMessage]()
	if o.raw != nil {
		for pair := o.raw.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, pair.Value)
		}
	}
	for _, m := range members {
		if _, present := out.Get(m.key); !present && m.omit {
			continue
		}
		v, err := json.Marshal(m.ptr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.key, err)
		}
		out.Set(m.key, v)
	}
	return json.Marshal(out)
}
