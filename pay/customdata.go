package pay

import (
	"encoding/json"
	"fmt"
)

// custom_data travels as a flat JSON object; transaction_id is one key among
// the caller's free-form extras.

const transactionIDKey = "transaction_id"

// MarshalJSON flattens the transaction id and extras into one object.
func (c CustomData) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(c.Extra)+1)
	for k, v := range c.Extra {
		m[k] = v
	}
	if c.TransactionID != "" {
		m[transactionIDKey] = c.TransactionID
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts whatever the provider echoes back, stringifying
// non-string values rather than failing the whole decode.
func (c *CustomData) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.TransactionID = ""
	c.Extra = nil
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if k == transactionIDKey {
			c.TransactionID = s
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]string)
		}
		c.Extra[k] = s
	}
	return nil
}
