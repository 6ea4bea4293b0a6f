package g

import (
	"encoding/json"
	"testing"
)

var cases = []struct {
	name, input, output string
}{
	{"empty", "", ""},
	{"empty2", "[]", "[]"},
	{"empty3", "{}", "{}"},
	{"empty4", `""`, `""`},
	{"string", `"a"`, `"a"`},
	{"simple", `{"SubId":["B"],"C":1,"D":"e"}`, `{"sub_id":["B"],"c":1,"d":"e"}`},
	{"snake", `{"sub_id":"0x01","credits_left":10}`, `{"sub_id":"0x01","credits_left":10}`},
	{"nested", `{"details":{"createdAt":10,"target":{"parents":1,"interior":{"X1":[{"Parachain":2000}]}}},"creditsLeft":0.25,"state":null}`,
		`{"details":{"created_at":10,"target":{"parents":1,"interior":{"x1":[{"parachain":2000}]}}},"credits_left":0.25,"state":null}`},
	{"real",
		`{"subId":"0x4c3d","randomness":"0xaabb","Target":{"parents":1,"interior":{"X2":[{"Parachain":4502},{"PalletInstance":12}]}},"callIndex":"0x2a00"}`,
		`{"sub_id":"0x4c3d","randomness":"0xaabb","target":{"parents":1,"interior":{"x2":[{"parachain":4502},{"pallet_instance":12}]}},"call_index":"0x2a00"}`,
	},
}

func TestConverter(t *testing.T) {
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ChangeJsonKeys([]byte(c.input), CamelToSnake)
			if string(got) != c.output {
				t.Errorf("got:\n%s\n, want:\n%s", string(got), c.output)
			}
		})
	}
}

func TestCamelToSnake(t *testing.T) {
	for input, want := range map[string]string{
		"creditsLeft":    "credits_left",
		"CreditsLeft":    "credits_left",
		"credits_left":   "credits_left",
		"subscriptionId": "subscription_id",
		"X1":             "x1",
	} {
		if got := CamelToSnake(input); got != want {
			t.Errorf("CamelToSnake(%q) = %q, want %q", input, got, want)
		}
	}
}

func BenchmarkConverter(b *testing.B) {
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				ChangeJsonKeys([]byte(c.input), CamelToSnake)
			}
		})
	}
}

func BenchmarkNaiveConverter(b *testing.B) {
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				naiveChangeKeys([]byte(c.input), CamelToSnake)
			}
		})
	}
}

func naiveChangeKeys(j json.RawMessage, fixKey func(s string) string) json.RawMessage {
	m := make(map[string]json.RawMessage)
	if err := json.Unmarshal(j, &m); err != nil {
		// Not a JSON object
		return j
	}

	for k, v := range m {
		fixed := fixKey(k)
		delete(m, k)
		m[fixed] = naiveChangeKeys(v, fixKey)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return j
	}

	return b
}
