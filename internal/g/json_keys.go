package g

import (
	"encoding/json"

	"github.com/go-faster/jx"
)

// ChangeJsonKeys rewrites every object key of a JSON document with fixKey.
// Values are copied as is. The input is returned unchanged if it is not valid JSON.
func ChangeJsonKeys(j json.RawMessage, fixKey func(s string) string) json.RawMessage {
	if len(j) == 0 {
		return j
	}
	var e jx.Encoder
	d := jx.DecodeBytes(j)
	if err := rewriteKeys(d, &e, fixKey); err != nil {
		return j
	}
	return e.Bytes()
}

func rewriteKeys(d *jx.Decoder, e *jx.Encoder, fixKey func(s string) string) error {
	switch d.Next() {
	case jx.Object:
		e.ObjStart()
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			e.FieldStart(fixKey(string(key)))
			return rewriteKeys(d, e, fixKey)
		})
		if err != nil {
			return err
		}
		e.ObjEnd()
		return nil
	case jx.Array:
		e.ArrStart()
		err := d.Arr(func(d *jx.Decoder) error {
			return rewriteKeys(d, e, fixKey)
		})
		if err != nil {
			return err
		}
		e.ArrEnd()
		return nil
	default:
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		e.Raw(raw)
		return nil
	}
}
